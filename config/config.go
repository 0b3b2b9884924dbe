// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides small, composable readers for sourcing configuration values.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Value represents an optionally set configuration value.
// The zero value represents "not set" and allows callers to
// apply their own defaults via [MustOr].
type Value[T any] struct {
	value T
	set   bool
}

// ValueOf initializes a set [Value].
func ValueOf[T any](t T) Value[T] {
	return Value[T]{value: t, set: true}
}

// Get returns the underlying value and whether it was set.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.set
}

// Reader reads a configuration value from some source.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is an adapter to allow the use of ordinary functions as [Reader]s.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// ReaderOf returns a [Reader] which always returns the given value.
func ReaderOf[T any](t T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(t), nil
	})
}

// EmptyReader returns a [Reader] which always returns an unset [Value].
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// Env reads a value from the named environment variable.
// An unset or empty variable yields an unset [Value].
func Env(key string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		s, ok := os.LookupEnv(key)
		if !ok || s == "" {
			return Value[string]{}, nil
		}
		return ValueOf(s), nil
	})
}

// Map transforms the value read by r with f. Unset values pass through unchanged.
func Map[T, U any](r Reader[T], f func(context.Context, T) (U, error)) Reader[U] {
	return ReaderFunc[U](func(ctx context.Context) (Value[U], error) {
		v, err := r.Read(ctx)
		if err != nil {
			return Value[U]{}, err
		}
		t, ok := v.Get()
		if !ok {
			return Value[U]{}, nil
		}
		u, err := f(ctx, t)
		if err != nil {
			return Value[U]{}, err
		}
		return ValueOf(u), nil
	})
}

// Or reads from each [Reader], in order, returning the first set [Value].
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			v, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := v.Get(); ok {
				return v, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Must reads from r and panics if the value is unset or reading fails.
// It is meant to be used inside application builders where a missing
// required value is unrecoverable.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := r.Read(ctx)
	if err != nil {
		panic(fmt.Errorf("config: failed to read value: %w", err))
	}
	t, ok := v.Get()
	if !ok {
		panic(fmt.Errorf("config: required value is not set"))
	}
	return t
}

// MustOr reads from r, returning def if r is nil or the value is unset.
// It panics if reading fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	if r == nil {
		return def
	}
	v, err := r.Read(ctx)
	if err != nil {
		panic(fmt.Errorf("config: failed to read value: %w", err))
	}
	t, ok := v.Get()
	if !ok {
		return def
	}
	return t
}

// DurationFromString parses the value read by r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, func(ctx context.Context, s string) (time.Duration, error) {
		return time.ParseDuration(s)
	})
}

// IntFromString parses the value read by r with [strconv.Atoi].
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, func(ctx context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	})
}

// Int32FromString parses the value read by r as a 32-bit integer.
func Int32FromString(r Reader[string]) Reader[int32] {
	return Map(r, func(ctx context.Context, s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return 0, err
		}
		return int32(n), nil
	})
}

// BoolFromString parses the value read by r with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, func(ctx context.Context, s string) (bool, error) {
		return strconv.ParseBool(s)
	})
}
