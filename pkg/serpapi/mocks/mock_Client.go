// Package mocks provides test doubles for the serpapi client.
package mocks

import (
	"context"

	serpapi "github.com/sells-group/review-scout/pkg/serpapi"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// MapsSearch provides a mock function with given fields: ctx, req
func (_m *MockClient) MapsSearch(ctx context.Context, req serpapi.MapsSearchRequest) (*serpapi.MapsSearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for MapsSearch")
	}

	var r0 *serpapi.MapsSearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, serpapi.MapsSearchRequest) (*serpapi.MapsSearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*serpapi.MapsSearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// MapsReviews provides a mock function with given fields: ctx, req
func (_m *MockClient) MapsReviews(ctx context.Context, req serpapi.MapsReviewsRequest) (*serpapi.MapsReviewsResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for MapsReviews")
	}

	var r0 *serpapi.MapsReviewsResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, serpapi.MapsReviewsRequest) (*serpapi.MapsReviewsResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*serpapi.MapsReviewsResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
