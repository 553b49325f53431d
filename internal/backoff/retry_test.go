// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantPolicy_ComputeNextInterval(t *testing.T) {
	t.Parallel()

	p := &ConstantPolicy{Interval: 10 * time.Millisecond, MaxRetries: 2}

	d, err := p.ComputeNextInterval(0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, d)

	d, err = p.ComputeNextInterval(1)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, d)

	_, err = p.ComputeNextInterval(2)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetrier_Next(t *testing.T) {
	t.Parallel()

	r := NewRetrier(&ConstantPolicy{Interval: time.Millisecond, MaxRetries: 2})
	ctx := context.Background()

	require.NoError(t, r.Next(ctx))
	require.NoError(t, r.Next(ctx))
	assert.ErrorIs(t, r.Next(ctx), ErrRetriesExhausted)

	r.Reset()
	require.NoError(t, r.Next(ctx))
}

func TestRetrier_Next_ContextCanceled(t *testing.T) {
	t.Parallel()

	r := NewRetrier(&ConstantPolicy{Interval: time.Hour, MaxRetries: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Next(ctx), ErrOperationCanceled)
}
