// Package noisechan implements the Noise-encrypted per-(repository,peer)
// channel of §4.6 and the dispatcher that tracks the several such
// channels a pair of peers shares, each running over its own
// io.ReadWriteCloser supplied by the caller's connection layer. The handshake
// uses flynn/noise's NN pattern with a pre-shared key derived from the
// repository's secret id, so both sides authenticate "possesses the
// secret repository id" without exchanging device identities.
package noisechan
