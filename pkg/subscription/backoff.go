/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package subscription

import (
	"fmt"
	"time"
)

// Default backoff values
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 30 * time.Second
	DefaultMaxAttempts    = 5
)

// BackoffPolicy governs reconnect delays and the retry budget.
// The retry counter drives both the delay and the give-up decision.
type BackoffPolicy struct {
	Initial     time.Duration // Delay before the first reconnect attempt
	Max         time.Duration // Ceiling for any delay
	MaxAttempts int           // Consecutive reconnect attempts allowed without a successful open
}

// DefaultBackoff returns the 1s / 30s / 5 attempts policy
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Initial:     DefaultBackoffInitial,
		Max:         DefaultBackoffMax,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the wait before reconnect attempt n (1-indexed).
// Formula: min(initial * 2^(n-1), max)
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max || delay <= 0 {
			return p.Max
		}
	}

	if delay > p.Max {
		return p.Max
	}
	return delay
}

// Exhausted reports whether retries consecutive failed attempts used up the budget
func (p BackoffPolicy) Exhausted(retries int) bool {
	return retries >= p.MaxAttempts
}

// Validate checks the policy for errors
func (p BackoffPolicy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("backoff initial delay must be positive, got: %s", p.Initial)
	}
	if p.Max <= 0 {
		return fmt.Errorf("backoff max delay must be positive, got: %s", p.Max)
	}
	if p.Initial > p.Max {
		return fmt.Errorf("backoff initial delay (%s) must be <= max delay (%s)", p.Initial, p.Max)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("backoff max attempts must not be negative, got: %d", p.MaxAttempts)
	}
	return nil
}
