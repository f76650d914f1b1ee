// Command zar is a thin CLI driving the xar package: create, list, and
// extract archives, optionally signing or verifying them. It implements no
// archive semantics itself — only flag parsing, host filesystem walking,
// and exit-code mapping.
package main

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/integrii/flaggy"
	"github.com/luci/luci-go/common/logging"
	"github.com/luci/luci-go/common/logging/gologger"

	"github.com/igankevich/zar/sign"
	"github.com/igankevich/zar/trust"
	"github.com/igankevich/zar/xar"
	"github.com/igankevich/zar/xarfmt"
	"github.com/igankevich/zar/xarfmt/toc"
)

// Exit codes returned by main, by failure category.
const (
	exitSuccess        = 0
	exitUsage          = 1
	exitIO             = 2
	exitFormatOrDigest = 3
	exitSignature      = 4
)

func main() {
	ctx := gologger.StdConfig.Use(context.Background())
	os.Exit(run(ctx, expandClusteredFlags(os.Args[1:])))
}

// expandClusteredFlags turns tar-style clustered short flags ("-cf", "-xf",
// "-tf") into the separate single-letter flags flaggy understands.
func expandClusteredFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "-cf":
			out = append(out, "-c", "-f")
		case "-xf":
			out = append(out, "-x", "-f")
		case "-tf":
			out = append(out, "-t", "-f")
		default:
			out = append(out, a)
		}
	}
	return out
}

func run(ctx context.Context, args []string) int {
	var (
		create, extract, list     bool
		archivePath               string
		signKeyPath, signCertPath string
		trustPaths                []string
		compressionName           = "gzip"
	)

	flaggy.SetName("zar")
	flaggy.SetDescription("create, list, and extract XAR archives")
	flaggy.Bool(&create, "c", "create", "create an archive")
	flaggy.Bool(&extract, "x", "extract", "extract an archive")
	flaggy.Bool(&list, "t", "list", "list an archive's entries")
	flaggy.String(&archivePath, "f", "file", "archive path")
	flaggy.String(&signKeyPath, "", "sign", "PEM-encoded PKCS#1 RSA private key to sign with")
	flaggy.String(&signCertPath, "", "cert", "PEM-encoded certificate matching --sign")
	flaggy.StringSlice(&trustPaths, "", "trust", "PEM-encoded trusted root certificate (repeatable)")
	flaggy.String(&compressionName, "", "compression", "compression for created entries: none, gzip, bzip2, xz")

	if err := flaggy.DefaultParser.ParseArgs(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	positional := flaggy.DefaultParser.TrailingArguments

	switch {
	case create && !extract && !list:
		return doCreate(ctx, archivePath, positional, signKeyPath, signCertPath, compressionName)
	case extract && !create && !list:
		dest := "."
		if len(positional) > 0 {
			dest = positional[0]
		}
		return doExtract(ctx, archivePath, dest, trustPaths)
	case list && !create && !extract:
		return doList(archivePath)
	default:
		fmt.Fprintln(os.Stderr, "exactly one of -c, -x, -t is required")
		return exitUsage
	}
}

func parseCompression(name string) (xarfmt.CompressionScheme, error) {
	switch strings.ToLower(name) {
	case "", "gzip":
		return xarfmt.CompressionGzip, nil
	case "none":
		return xarfmt.CompressionNone, nil
	case "bzip2":
		return xarfmt.CompressionBzip2, nil
	case "xz":
		return xarfmt.CompressionXz, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

func loadSigner(keyPath, certPath string) (sign.Signer, error) {
	if keyPath == "" {
		return sign.NoSigner{}, nil
	}
	if certPath == "" {
		return nil, fmt.Errorf("--sign requires --cert")
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("no PEM block in %s", keyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("no PEM block in %s", certPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	return sign.NewRSASigner(key, crypto.SHA256, cert)
}

func loadTrustStore(paths []string) (*trust.Store, error) {
	ts := trust.NewStore()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := ts.AddPEM(data); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func doCreate(ctx context.Context, archivePath string, paths []string, keyPath, certPath, compressionName string) int {
	if archivePath == "" || len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: zar -cf ARCHIVE PATHS...")
		return exitUsage
	}
	compression, err := parseCompression(compressionName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	signer, err := loadSigner(keyPath, certPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	f, err := os.Create(archivePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer f.Close()

	b := xar.NewBuilder(f, xar.WithCompression(compression, 6), xar.WithSigner(signer))
	for _, p := range paths {
		name := filepath.Base(filepath.Clean(p))
		if err := b.AppendTree(p, name, compression, nil); err != nil {
			logging.Errorf(ctx, "appending %q: %s", p, err)
			return exitIO
		}
	}
	if err := b.Finish(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	return exitSuccess
}

func doList(archivePath string) int {
	if archivePath == "" {
		fmt.Fprintln(os.Stderr, "usage: zar -tf ARCHIVE")
		return exitUsage
	}
	f, err := os.Open(archivePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer f.Close()

	ar, err := xar.Open(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFormatOrDigest
	}
	for i := 0; i < ar.NumEntries(); i++ {
		fmt.Println(ar.Entry(i).Path())
	}
	return exitSuccess
}

func doExtract(ctx context.Context, archivePath, dest string, trustPaths []string) int {
	if archivePath == "" {
		fmt.Fprintln(os.Stderr, "usage: zar -xf ARCHIVE DEST")
		return exitUsage
	}
	f, err := os.Open(archivePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer f.Close()

	ar, err := xar.Open(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFormatOrDigest
	}

	if len(trustPaths) > 0 {
		ts, err := loadTrustStore(trustPaths)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		res, err := ar.Verify(ts, time.Now())
		if err != nil || res != xar.Verified {
			logging.Errorf(ctx, "signature verification failed: %s (%s)", err, res)
			return exitSignature
		}
	}

	if err := os.MkdirAll(dest, 0o777); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}

	hadError := false
	for i := 0; i < ar.NumEntries(); i++ {
		e := ar.Entry(i)
		if err := extractEntry(ar, dest, e); err != nil {
			logging.Errorf(ctx, "extracting %q: %s", e.Path(), err)
			hadError = true
		}
	}
	if hadError {
		return exitIO
	}
	return exitSuccess
}

func extractEntry(ar *xar.Archive, dest string, e *xar.Entry) error {
	abs := filepath.Join(dest, filepath.FromSlash(e.Path()))
	mode := os.FileMode(e.TOC().Mode)
	if mode == 0 {
		mode = 0o644
	}

	switch e.Kind() {
	case toc.KindDirectory:
		return os.MkdirAll(abs, mode|0o700)
	case toc.KindSymlink:
		if err := os.MkdirAll(filepath.Dir(abs), 0o777); err != nil {
			return err
		}
		return os.Symlink(e.TOC().SymlinkTarget, abs)
	case toc.KindHardlink, toc.KindFile:
		source := e
		if e.Kind() == toc.KindHardlink {
			source = ar.EntryByID(e.TOC().LinkTargetID)
			if source == nil {
				return fmt.Errorf("hardlink targets unknown id %d", e.TOC().LinkTargetID)
			}
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o777); err != nil {
			return err
		}
		r, err := source.Reader()
		if err != nil {
			return err
		}
		defer r.Close()
		out, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}
	return fmt.Errorf("unsupported entry kind %v", e.Kind())
}
