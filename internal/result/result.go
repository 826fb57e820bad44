// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package result defines the operation envelope returned by every CRM and
// ERP operation. Failures carry a Kind that maps onto an HTTP status; a
// failed result never carries a payload.
package result

import "net/http"

// Kind classifies a failed operation.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream_failure"
	KindInternal   Kind = "internal_error"
)

// Status returns the HTTP status code conventionally used for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Result is the outcome of a single operation.
type Result[T any] struct {
	Success          bool
	Data             T
	Error            string
	ValidationErrors []string
	StatusCode       int
	Kind             Kind

	// Detail holds diagnostic text from an upstream system, typically the
	// raw response body of a failed ERP call.
	Detail string
}

// OK wraps a read result (200).
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data, StatusCode: http.StatusOK}
}

// Created wraps a create result (201).
func Created[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data, StatusCode: http.StatusCreated}
}

// Invalid is a validation failure. With no explicit errors the message
// itself becomes the single validation error.
func Invalid[T any](message string, errs ...string) Result[T] {
	if len(errs) == 0 {
		errs = []string{message}
	}
	return fail[T](KindValidation, message, errs)
}

// NotFound reports a missing record.
func NotFound[T any](message string) Result[T] {
	return fail[T](KindNotFound, message, nil)
}

// Upstream reports a non-success response from an external system.
func Upstream[T any](message, detail string) Result[T] {
	r := fail[T](KindUpstream, message, nil)
	r.Detail = detail
	return r
}

// Internal reports an unexpected failure.
func Internal[T any](message string) Result[T] {
	return fail[T](KindInternal, message, nil)
}

// Fail carries a failure over to a result with a different payload type.
// It panics if r succeeded.
func Fail[T, U any](r Result[U]) Result[T] {
	if r.Success {
		panic("result: Fail called on a successful result")
	}
	return Result[T]{
		Error:            r.Error,
		ValidationErrors: r.ValidationErrors,
		StatusCode:       r.StatusCode,
		Kind:             r.Kind,
		Detail:           r.Detail,
	}
}

func fail[T any](kind Kind, message string, errs []string) Result[T] {
	if errs == nil {
		errs = []string{}
	}
	return Result[T]{
		Error:            message,
		ValidationErrors: errs,
		StatusCode:       kind.Status(),
		Kind:             kind,
	}
}
