// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merrors

import (
	"errors"
	"fmt"
)

// Wrap adds context to err while preserving it for errors.Is/As. Returns
// nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is wraps errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As wraps errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap wraps errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// New wraps errors.New.
func New(message string) error { return errors.New(message) }
