// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed background fetch.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindParse    Kind = "parse"
	KindDecode   Kind = "decode"
	KindIO       Kind = "io"
	KindCanceled Kind = "canceled"
)

var (
	ErrPoolStopped       = errors.New("loader: worker pool stopped")
	ErrDispatcherStopped = errors.New("loader: dispatcher stopped")
)

// Error is the structured failure kept for logs and metrics. It is never handed
// to the collaborator as data.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err with a kind unless err already carries one. Context
// cancellation always wins so cancelled work is never counted as a fault.
func Fail(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind recorded in err, inferring network and canceled
// failures from the standard library error types.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindIO
}
