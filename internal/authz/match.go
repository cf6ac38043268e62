// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import "strings"

const selfSegment = ":self"

// MatchResource reports whether pattern matches resource. Pure function,
// no side effects, O(1) per pattern.
//
// The grammar is deliberately kept to three forms for predictability:
//
//  1. Exact equality, or the Wildcard token matching anything.
//  2. "prefix:*" matches any resource starting with "prefix:".
//  3. A pattern containing the literal ":self" segment matches any
//     resource under the same prefix. The matcher cannot verify
//     self-ownership: callers must pass an already-resolved resource
//     identifier (e.g. "profile:<subject_id>") or treat such patterns as
//     context-dependent. This is a non-enforcing match, kept explicit
//     rather than silently upgraded to an ownership check.
//
// No partial wildcard in the middle of a segment is supported.
func MatchResource(pattern, resource string) bool {
	if pattern == Wildcard || pattern == resource {
		return true
	}

	if strings.HasSuffix(pattern, ":*") {
		prefix := pattern[:len(pattern)-1] // keep the trailing colon
		return strings.HasPrefix(resource, prefix)
	}

	if idx := strings.Index(pattern, selfSegment); idx >= 0 {
		return strings.HasPrefix(resource, pattern[:idx]+":")
	}

	return false
}

// matchAction reports whether a permission or policy action covers the
// requested action.
func matchAction(patternAction, action string) bool {
	return patternAction == Wildcard || patternAction == action
}

// actionInSet reports whether a policy's action set covers the requested
// action, honoring the wildcard token.
func actionInSet(actions []string, action string) bool {
	for _, a := range actions {
		if matchAction(a, action) {
			return true
		}
	}
	return false
}
