// Package storetest is a conformance suite for store.Store backends.
//
// A backend test calls Run with a factory that returns an empty, migrated
// store for every subtest:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
//	}
package storetest
