// Package testing provides a conformance suite for implementations of provider.Provider.
//
// The suite drives every operation through provider.Dispatch and checks the payload contract:
// data slots, data error identifiers (MissingData, InvalidDataType, InvalidValueType,
// InvalidCount, MissingValue), hook error propagation and per-key atomicity under concurrent
// mutations. Expected values are compared after a JSON round trip, so numbers are float64.
//
// Example usage:
//
//	providertesting.RunProviderTests(t, "MyProvider", func(t testing.TB) provider.Provider {
//		return NewMyProvider()
//	})
package testing
