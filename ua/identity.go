// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// AnonymousIdentityToken authenticates with no credentials beyond the
// policy id the server advertised (Part 4, 7.41.1).
type AnonymousIdentityToken struct {
	PolicyID string
}

// UserNameIdentityToken authenticates with a username and an
// (encrypted, by Transport) password (Part 4, 7.41.2).
type UserNameIdentityToken struct {
	PolicyID            string
	UserName            string
	Password            []byte
	EncryptionAlgorithm string
}

// X509IdentityToken authenticates by presenting a certificate and
// signing the server's nonce (Part 4, 7.41.3).
type X509IdentityToken struct {
	PolicyID        string
	CertificateData []byte
}

// IssuedIdentityToken authenticates with an externally-issued token,
// e.g. a WS-SecureConversation or JWT token (Part 4, 7.41.4).
type IssuedIdentityToken struct {
	PolicyID            string
	TokenData           []byte
	EncryptionAlgorithm string
}
