// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
)

// Failure kinds reported by the rendering context. Returned errors wrap
// one of these together with the driver cause, test them with errors.Is.
var (
	ErrInstanceCreation       = errors.New("instance creation failed")
	ErrNoAdaptersFound        = errors.New("no graphics adapters found")
	ErrNoSuitableAdapter      = errors.New("no suitable graphics adapter")
	ErrMissingDebugExtension  = errors.New("debug extension entry point missing")
	ErrSurfaceCreation        = errors.New("surface creation failed")
	ErrDeviceCreation         = errors.New("device creation failed")
	ErrUnsupportedSurface     = errors.New("surface has no formats or present modes")
	ErrSwapChainCreation      = errors.New("swap chain creation failed")
	ErrImageViewCreation      = errors.New("image view creation failed")
	ErrRenderPassCreation     = errors.New("render pass creation failed")
	ErrPipelineLayoutCreation = errors.New("pipeline layout creation failed")
	ErrShaderLoad             = errors.New("shader load failed")
	ErrContextDestroyed       = errors.New("device context destroyed")
)

// kindError ties a failure kind to the error that caused it.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

// Is reports a match against the failure kind.
func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the cause.
func (e *kindError) Unwrap() error {
	return e.cause
}

// Cause returns the cause, for github.com/pkg/errors.Cause.
func (e *kindError) Cause() error {
	return e.cause
}

// Wrap annotates cause with a kind and a message. errors.Is matches both
// the kind and anything in the cause chain. A nil cause returns the kind
// annotated with the message.
func Wrap(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Wrapf(kind, format, args...)
	}
	return errors.Wrapf(&kindError{kind: kind, cause: cause}, format, args...)
}
