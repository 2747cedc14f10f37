// Package rpc reports service bindings that will not behave as the
// annotations suggest.
package rpc

import (
	"context"
	"fmt"

	"github.com/helianthus/reflectgen/internal/checks"
	"github.com/helianthus/reflectgen/internal/model"
)

// RpcTag marks a method meant to be served remotely.
const RpcTag = "Rpc"

type RpcCheck struct {
	optOutTag string
}

// New creates an RpcCheck. Classes carrying optOutTag are not expected to
// provide a factory.
func New(optOutTag string) *RpcCheck {
	return &RpcCheck{optOutTag: optOutTag}
}

func (c *RpcCheck) Name() string {
	return "rpc"
}

func (c *RpcCheck) Check(ctx context.Context, classes []model.ClassRecord) ([]checks.Diagnostic, error) {
	var diags []checks.Diagnostic
	warn := func(cls *model.ClassRecord, format string, args ...any) {
		diags = append(diags, checks.Diagnostic{
			Check:    c.Name(),
			Severity: checks.SeverityWarning,
			Class:    cls.Name,
			Files:    []string{cls.SourceFile},
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for i := range classes {
		cls := &classes[i]
		optedOut := c.optOutTag != "" && cls.HasTag(c.optOutTag)

		switch {
		case cls.HasFactory && !cls.HeaderMode:
			warn(cls, "%s declares a factory but is defined in a translation unit; a null factory is registered", cls.Name)
		case !cls.HasFactory && !optedOut && hasRpcMethod(cls):
			warn(cls, "%s has %s methods but no factory marker; auto-mount will skip it", cls.Name, RpcTag)
		}

		seen := make(map[string]bool, len(cls.Methods))
		for _, m := range cls.Methods {
			if seen[m.Name] {
				warn(cls, "method %s::%s is declared more than once; only the first is registered as an RPC method", cls.Name, m.Name)
				continue
			}
			seen[m.Name] = true
		}
	}
	return diags, nil
}

func hasRpcMethod(cls *model.ClassRecord) bool {
	for _, m := range cls.Methods {
		for _, t := range m.Tags {
			if t == RpcTag {
				return true
			}
		}
	}
	return false
}
