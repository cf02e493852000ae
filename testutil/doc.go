// Package testutil provides test doubles shared across packages: an
// in-process fake relay speaking the websocket wire protocol with
// configurable accept/reject behavior, and event factories.
package testutil
