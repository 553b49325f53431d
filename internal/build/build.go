// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package build holds version metadata set at link time.
package build

var (
	// Version is overridden via -ldflags at release build time.
	Version = "dev"
	// AppName is the display name used in CLI banners and user agents.
	AppName = "patas"
)
