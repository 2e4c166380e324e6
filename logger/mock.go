package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
//
// Tests that do not care about log output can use NewNopMockLogger, which accepts every call.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// NewNopMockLogger returns a MockLogger with permissive expectations on all logging methods.
func NewNopMockLogger() *MockLogger {
	m := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}
	m.On("With", mock.Anything).Return(m).Maybe()
	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level LogLevel) {
	m.Called(level)
}

func (m *MockLogger) Level() LogLevel {
	args := m.Called()
	return args.Get(0).(LogLevel)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	args := m.Called(keyValues)
	return args.Get(0).(Logger)
}
