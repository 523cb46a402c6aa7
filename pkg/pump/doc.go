// Package pump is the application-facing client for an insulin pump.
//
// A Client owns one transport to the pump. Pair runs the handshake selected
// by the pairing code and persists the result; Resume restores a stored
// pairing after a restart. Once authenticated, Request sends any message of
// the catalogue, signing it when required.
//
// Example:
//
//	client, err := pump.NewClient(pump.ClientConfig{
//		Transport: bridge,
//		Serial:    "11223344",
//		Store:     session.NewFileStore("pairings.json"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Resume(ctx); errors.Is(err, session.ErrNotPaired) {
//		err = client.Pair(ctx, "123456")
//	}
package pump
