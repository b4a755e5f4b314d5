// Package service provides the built-in method set served over REPE:
// arithmetic (add, multiply, divide), string echo, and a status report.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/repe-org/repe-go/codec"
	"github.com/repe-org/repe-go/server"
)

// ErrDivisionByZero is the divide method's domain failure. The dispatcher
// maps it to an invalid_body response; the exact text is part of the wire
// contract.
var ErrDivisionByZero = errors.New("Division by zero")

// NumericParams is the parameter shape of the arithmetic methods. Lookups
// of absent keys yield zero, so a request missing an operand computes with
// 0.0 rather than failing.
type NumericParams map[string]float64

// TextParams is the parameter shape of echo.
type TextParams map[string]string

// StatusSource supplies the live values reported by the status method.
// *server.Server satisfies it.
type StatusSource interface {
	Uptime() time.Duration
	ActiveConns() int64
}

// Methods returns the full built-in method set. src feeds the status
// report; the other methods are pure.
func Methods(src StatusSource) []*server.Method {
	return []*server.Method{
		Add(), Multiply(), Divide(), Echo(), Status(src),
	}
}

func Add() *server.Method {
	return numeric("add", func(p NumericParams) (float64, error) {
		return p["a"] + p["b"], nil
	})
}

func Multiply() *server.Method {
	return numeric("multiply", func(p NumericParams) (float64, error) {
		return p["x"] * p["y"], nil
	})
}

func Divide() *server.Method {
	return numeric("divide", func(p NumericParams) (float64, error) {
		if p["denominator"] == 0 {
			return 0, ErrDivisionByZero
		}
		return p["numerator"] / p["denominator"], nil
	})
}

func Echo() *server.Method {
	return &server.Method{
		Name: "echo",
		// Decode into the plain map type the codecs understand.
		NewParams: func() any { return new(map[string]string) },
		Invoke: func(ctx context.Context, params any) (any, error) {
			p := TextParams(*params.(*map[string]string))
			return map[string]string{"result": "Echo: " + p["message"]}, nil
		},
	}
}

// Status reports a heterogeneous map of mixed scalar kinds: string status
// and version, float uptime seconds, integer connection count.
func Status(src StatusSource) *server.Method {
	return &server.Method{
		Name: "status",
		Invoke: func(ctx context.Context, params any) (any, error) {
			return map[string]codec.Value{
				"status":      codec.String("online"),
				"version":     codec.String("1.0.0"),
				"uptime":      codec.Float(src.Uptime().Seconds()),
				"connections": codec.Int(src.ActiveConns()),
			}, nil
		},
	}
}

func numeric(name string, fn func(NumericParams) (float64, error)) *server.Method {
	return &server.Method{
		Name:      name,
		NewParams: func() any { return new(map[string]float64) },
		Invoke: func(ctx context.Context, params any) (any, error) {
			result, err := fn(NumericParams(*params.(*map[string]float64)))
			if err != nil {
				return nil, err
			}
			return map[string]float64{"result": result}, nil
		},
	}
}
