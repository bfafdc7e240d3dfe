// Package whimsy provides a lightweight spinner with rotating messages for
// commands that run outside the interactive feed.
package whimsy

// CipheringMessages rotate while items are being enciphered
var CipheringMessages = []string{
	"scrambling...",
	"shuffling letters...",
	"sealing envelopes...",
	"stirring the nonce...",
	"folding ciphertext...",
	"hiding vowels...",
	"mixing keystream...",
	"whispering to the worker...",
}

// DrainingMessages rotate while the queue empties
var DrainingMessages = []string{
	"draining the queue...",
	"waiting on stragglers...",
	"counting milliseconds...",
	"tidying up...",
}

// SyncingMessages rotate while the ledger is mirrored
var SyncingMessages = []string{
	"mirroring ledger...",
	"publishing completions...",
	"talking to redis...",
}

// DerivingMessages rotate while the key is derived from the passphrase
var DerivingMessages = []string{
	"stretching passphrase...",
	"deriving key...",
	"warming up argon2...",
}
