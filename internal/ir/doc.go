// Package ir provides the value and identity types shared by every vecgrid
// package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are immutable once published; Array.With returns a copy
//   - Arrays carry their dimensions explicitly so rank is never inferred
//   - Identifiers (NodeID, SenderID, AffinityID) are never zero once minted;
//     zero means "empty" or "external"
//   - All JSON produced for journals and golden traces goes through
//     MarshalCanonical
package ir
