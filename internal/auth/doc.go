// Package auth implements the OAuth token lifecycle gating the cloud
// fulfillment endpoint.
//
// There is exactly one trusted client, the assistant platform, configured
// statically. The flow is standard authorization-code plus refresh-token:
// the authorization endpoint verifies the user's identity token and issues
// a short-lived code, the token endpoint exchanges it for a bearer pair,
// and every fulfillment request is introspected against the access token.
// Refresh tokens are deliberately long-lived (~10 years); an expired one
// forces the user back through account re-linking.
//
// Raw token values never touch storage, only SHA-256 hashes.
package auth
