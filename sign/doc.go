// Package sign implements the two signature styles a XAR archive's TOC can
// carry: a bare RSA PKCS#1 v1.5 signature over the checksummed TOC digest
// ("signature"), and a detached CMS/PKCS#7 signature over the same digest
// ("x-signature"). Both bind the signing certificate's chain into the TOC so
// a reader can verify provenance without a side channel.
package sign
