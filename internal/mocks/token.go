package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockToken is a mock implementation of the paho mqtt.Token interface
type MockToken struct {
	mock.Mock
}

func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockToken) WaitTimeout(d time.Duration) bool {
	args := m.Called(d)
	return args.Bool(0)
}

func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}
