// Package modal shows native toasts and dialogs.
package modal

import (
	"context"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// Module is the native module name.
const Module = "modal"

// Gravity positions a toast on screen.
type Gravity int

const (
	GravityBottom Gravity = iota
	GravityCenter
	GravityTop
)

// ToastConfig is the payload of modal.toast.
type ToastConfig struct {
	Msg     string  `json:"msg"`
	Gravity Gravity `json:"gravity"`
}

// AlertConfig is the payload of modal.alert.
type AlertConfig struct {
	Title   string `json:"title,omitempty"`
	Msg     string `json:"msg"`
	OKLabel string `json:"okLabel,omitempty"`
}

// ConfirmConfig is the payload of modal.confirm.
type ConfirmConfig struct {
	Title       string `json:"title,omitempty"`
	Msg         string `json:"msg"`
	OKLabel     string `json:"okLabel,omitempty"`
	CancelLabel string `json:"cancelLabel,omitempty"`
}

// Toast shows msg briefly. Toasts need no answer, so the call is returned
// for callers that want to wait for delivery.
func Toast(ctx context.Context, bc *bridge.Context, msg string, gravity Gravity) *bridge.Call {
	return bc.CallNative(ctx, Module, "toast", ToastConfig{Msg: msg, Gravity: gravity})
}

// Alert shows a dialog with a single button and waits until it is dismissed.
func Alert(ctx context.Context, bc *bridge.Context, cfg AlertConfig) error {
	_, err := bc.CallNative(ctx, Module, "alert", cfg).Await(ctx)
	return err
}

// Confirm shows a dialog with OK and Cancel and reports whether OK was
// chosen.
func Confirm(ctx context.Context, bc *bridge.Context, cfg ConfirmConfig) (bool, error) {
	return bridge.Decode[bool](ctx, bc.CallNative(ctx, Module, "confirm", cfg))
}
