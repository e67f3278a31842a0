package report

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/sells-group/review-scout/internal/model"
)

// ScreenshotName is the file name a review's screenshot is stored under.
func ScreenshotName(reviewID string) string {
	sum := sha256.Sum256([]byte(reviewID))
	return "review_" + hex.EncodeToString(sum[:])[:16] + ".png"
}

// FindScreenshots maps each review to its screenshot in dir, skipping
// reviews without one. Capturing is done by an external tool.
func FindScreenshots(dir string, reviews []model.Review) map[string]string {
	if dir == "" {
		return nil
	}
	found := make(map[string]string)
	for _, r := range reviews {
		path := filepath.Join(dir, ScreenshotName(r.ReviewID))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found[r.ReviewID] = path
		}
	}
	return found
}
