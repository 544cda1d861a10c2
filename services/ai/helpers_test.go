// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ai

import "github.com/Git-Shashi/intellichat/datatypes"

// userMessages builds a single-turn user history for tests.
func userMessages(contents ...string) []datatypes.Message {
	msgs := make([]datatypes.Message, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, datatypes.Message{Role: datatypes.RoleUser, Content: c})
	}
	return msgs
}
