// Package firebird implements a Firebird database node for workflow-automation hosts: run raw parameterized queries, bulk-insert incoming items, and update rows matched by a key column. It focuses on the part hosts tend to get wrong: projecting input items onto declared field lists, rewriting :named placeholders into driver-ready positional queries with an argument list that stays aligned, and leaving placeholder-like text inside string literals untouched, all of it per item and without a global driver registry.

package firebird
