// Package x is a minimal client for X's web GraphQL API: it resolves a
// handle to a user id, pages through UserTweets, performs the password
// login flow and persists the resulting auth_token/ct0 session.
//
// Responses are classified into the harvester's error taxonomy:
//
//	429, code 88          -> rate_limit (with x-rate-limit-reset when sent)
//	401, 403, 32, 64, 326 -> auth
//	5xx, code 131         -> transient
//	transport failure     -> connectivity
package x
