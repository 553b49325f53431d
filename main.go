// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import "github.com/diegofps/patas/cmd"

func main() {
	cmd.Execute()
}
