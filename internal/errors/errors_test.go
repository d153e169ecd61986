// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "flow id is required")
	assert.Equal(t, "flow id is required", err.Error())

	wrapped := Wrap(err, KindInternal, "modify failed")
	assert.Equal(t, "modify failed: flow id is required", wrapped.Error())
	assert.Nil(t, Wrap(nil, KindInternal, "noop"))
}

func TestGetKind(t *testing.T) {
	err := New(KindNotFound, "flow not found")
	assert.Equal(t, KindNotFound, GetKind(err))
	assert.True(t, IsKind(err, KindNotFound))

	wrapped := Wrapf(err, KindUnavailable, "datapath %d", 7)
	assert.Equal(t, KindUnavailable, GetKind(wrapped))

	assert.Equal(t, KindUnknown, GetKind(errors.New("std error")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestAttributes(t *testing.T) {
	err := New(KindValidation, "bad priority")
	err = Attr(err, "field", "priority")
	err = Attr(err, "value", -1)

	wrapped := Attr(Wrap(err, KindInternal, "install failed"), "flow", "flow3")

	attrs := GetAttributes(wrapped)
	assert.Equal(t, "priority", attrs["field"])
	assert.Equal(t, -1, attrs["value"])
	assert.Equal(t, "flow3", attrs["flow"])
}

func TestAttr_PromotesPlainError(t *testing.T) {
	err := Attr(errors.New("boom"), "k", "v")
	assert.Equal(t, KindInternal, GetKind(err))
	assert.Equal(t, "v", GetAttributes(err)["k"])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestAttr_LeavesOriginalUntouched(t *testing.T) {
	base := New(KindNotFound, "flow not found")
	a := Attr(base, "flow", "a")
	b := Attr(base, "flow", "b")

	assert.Empty(t, GetAttributes(base))
	assert.Equal(t, "a", GetAttributes(a)["flow"])
	assert.Equal(t, "b", GetAttributes(b)["flow"])
	assert.Equal(t, KindNotFound, GetKind(a))
	assert.Equal(t, base.Error(), a.Error())
}

func TestAttr_KeepsOuterMessage(t *testing.T) {
	inner := New(KindValidation, "bad priority")
	outer := fmt.Errorf("flow f1: %w", inner)

	err := Attr(outer, "field", "priority")
	assert.Equal(t, "flow f1: bad priority", err.Error())
	assert.Equal(t, KindValidation, GetKind(err))
	assert.True(t, errors.Is(err, inner))
}

func TestGetAttributes_OuterWins(t *testing.T) {
	inner := Attr(New(KindValidation, "bad"), "field", "inner")
	outer := Attr(Wrap(inner, KindInternal, "load"), "field", "outer")
	assert.Equal(t, "outer", GetAttributes(outer)["field"])
}

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:  http.StatusBadRequest,
		KindNotFound:    http.StatusNotFound,
		KindUnavailable: http.StatusServiceUnavailable,
		KindInternal:    http.StatusInternalServerError,
		KindUnknown:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), kind.String())
	}
}

func TestError_LogValue(t *testing.T) {
	err := Attr(Attr(New(KindNotFound, "flow not found"), "flow", "f9"), "dpid", 3)
	v := err.(*Error).LogValue()

	assert.Equal(t, slog.KindGroup, v.Kind())
	got := map[string]string{}
	var keys []string
	for _, a := range v.Group() {
		keys = append(keys, a.Key)
		got[a.Key] = a.Value.String()
	}
	assert.Equal(t, []string{"msg", "kind", "dpid", "flow"}, keys)
	assert.Equal(t, "flow not found", got["msg"])
	assert.Equal(t, "not_found", got["kind"])
	assert.Equal(t, "3", got["dpid"])
	assert.Equal(t, "f9", got["flow"])
}
