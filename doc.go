/*
Package h2conn drives the client side of a single HTTP/2 connection.

Hand it a connection that is already established, plain (h2c with prior
knowledge) or TLS with "h2" negotiated, and it performs the handshake, then
sends every request queued on the returned Sender, in order, for as long as
the Sender is open:

	conn, _ := net.Dial("tcp", "localhost:8080")
	sender, c := h2conn.C().EnableDebugLog().NewConn(conn)
	go c.Run(context.Background())

	req, _ := http.NewRequest("GET", "http://localhost:8080/", nil)
	res, err := sender.RoundTrip(req)

Closing the Sender lets Run return once the queue is drained; the connection
itself is shut down gracefully after the last request body has been sent.
*/
package h2conn
