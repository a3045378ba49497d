// Package gpiomock provides gomock-generated doubles for gpio.OutputPin and
// gpio.InputPin, in the conventional mockgen shape (mockgen -destination
// gpiomock.go -package gpiomock github.com/go-ublox/cellular/gpio
// OutputPin,InputPin). Handwritten because this module never invokes the Go
// toolchain, but the generated-code layout is unchanged: a Mock<Type>,
// a Mock<Type>MockRecorder, and one Call-backed method pair per interface
// method.
package gpiomock

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockOutputPin is a mock of the gpio.OutputPin interface.
type MockOutputPin struct {
	ctrl     *gomock.Controller
	recorder *MockOutputPinMockRecorder
}

// MockOutputPinMockRecorder is the mock recorder for MockOutputPin.
type MockOutputPinMockRecorder struct {
	mock *MockOutputPin
}

// NewMockOutputPin creates a new mock instance.
func NewMockOutputPin(ctrl *gomock.Controller) *MockOutputPin {
	mock := &MockOutputPin{ctrl: ctrl}
	mock.recorder = &MockOutputPinMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOutputPin) EXPECT() *MockOutputPinMockRecorder {
	return m.recorder
}

// SetLow mocks base method.
func (m *MockOutputPin) SetLow() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetLow")
	ret0, _ := ret[0].(error)
	return ret0
}

// SetLow indicates an expected call of SetLow.
func (mr *MockOutputPinMockRecorder) SetLow() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetLow", reflect.TypeOf((*MockOutputPin)(nil).SetLow))
}

// SetHigh mocks base method.
func (m *MockOutputPin) SetHigh() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetHigh")
	ret0, _ := ret[0].(error)
	return ret0
}

// SetHigh indicates an expected call of SetHigh.
func (mr *MockOutputPinMockRecorder) SetHigh() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetHigh", reflect.TypeOf((*MockOutputPin)(nil).SetHigh))
}

// MockInputPin is a mock of the gpio.InputPin interface.
type MockInputPin struct {
	ctrl     *gomock.Controller
	recorder *MockInputPinMockRecorder
}

// MockInputPinMockRecorder is the mock recorder for MockInputPin.
type MockInputPinMockRecorder struct {
	mock *MockInputPin
}

// NewMockInputPin creates a new mock instance.
func NewMockInputPin(ctrl *gomock.Controller) *MockInputPin {
	mock := &MockInputPin{ctrl: ctrl}
	mock.recorder = &MockInputPinMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockInputPin) EXPECT() *MockInputPinMockRecorder {
	return m.recorder
}

// IsHigh mocks base method.
func (m *MockInputPin) IsHigh() (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsHigh")
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// IsHigh indicates an expected call of IsHigh.
func (mr *MockInputPinMockRecorder) IsHigh() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsHigh", reflect.TypeOf((*MockInputPin)(nil).IsHigh))
}
