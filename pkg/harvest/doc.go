// Package harvest drives the page loop for one account: authenticate,
// fetch pages through the provider, hand posts to the sink and cool down
// when the service rate-limits or stops returning data.
//
// The driver is a small state machine:
//
//	INIT -> AUTHENTICATING -> FETCHING -> PROCESSING -> FETCHING ...
//	                             |  ^          |
//	                             v  |          v
//	                         BACKING_OFF      DONE
//
// Auth failures and output write failures end in FATAL. Every other
// failure is retried on the same cursor.
package harvest
