/*
Package serialize is the boundary between live runtime values and the
cycle-free trees that cross into and out of a sandbox.

# Output shape

Every converted value is built only from:

  - nil, bool, int64, float64, string
  - []any (ordered sequences, Map entries as [key, value] pairs, Set values)
  - map[string]any (plain objects, Go structs and string-keyed maps)
  - CircularMarker, in place of a container already on the descent path

Functions, symbols, channels and undefined are dropped: omitted from
mappings and filtered out of sequences. Integers outside the exact JS range
and big.Int values become decimal text. Timestamps use TimeLayout in UTC.

# Cycles

The visited set is scoped to the current path: a container is added on entry
and removed on exit, so a value reachable twice through sibling branches is
serialized twice, while a true back-edge becomes CircularMarker.

# Failure containment

Value never panics. A node whose traversal fails (for example a Proxy with a
throwing trap) degrades to its string form; a Go value of unrecognized shape
is re-encoded once through JSON and otherwise coerced to a string.
*/
package serialize
