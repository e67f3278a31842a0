package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-scout/internal/model"
)

func TestScreenshotName(t *testing.T) {
	name := ScreenshotName("0x1:https://maps/r/1:Ana")
	assert.Regexp(t, `^review_[0-9a-f]{16}\.png$`, name)
	assert.Equal(t, name, ScreenshotName("0x1:https://maps/r/1:Ana"))
	assert.NotEqual(t, name, ScreenshotName("0x1:https://maps/r/2:Ana"))
}

func TestFindScreenshots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScreenshotName("a")), []byte("png"), 0o644))

	got := FindScreenshots(dir, []model.Review{{ReviewID: "a"}, {ReviewID: "b"}})
	assert.Equal(t, map[string]string{"a": filepath.Join(dir, ScreenshotName("a"))}, got)
	assert.Nil(t, FindScreenshots("", []model.Review{{ReviewID: "a"}}))
}
