// Package electionservice runs single-active elections with single-use voter
// tokens.
//
// Admins manage the election lifecycle, the candidate slate and token
// batches. Voters redeem a token for a short session and cast exactly one
// vote with it; the token is consumed by a conditional update in the same
// transaction that records the vote, and the vote row carries no link back
// to the token.
package electionservice
