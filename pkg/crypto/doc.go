/*
Package crypto implements the repository's cryptographic primitives: the
per-block stream cipher (§3 Entities: Block), locator encryption (§3
Entities: Locator), proof signing/verification (§3 Entities: Root node),
and share token encode/decode (§6.3).

It is the generalization of the teacher's pkg/security: where
SecretsManager wraps AES-256-GCM around a single cluster-wide key for
opaque blobs, BlockCipher here wraps XChaCha20-Poly1305 around the
repository's read key for many independently-nonced 32 KiB blocks, and
locator encryption/proof signing add the deterministic and asymmetric
operations the original domain needs that secrets management did not.
*/
package crypto
