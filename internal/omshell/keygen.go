package omshell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jbweber/homelab/rack/internal/metrics"
	"github.com/jbweber/homelab/rack/internal/shell"
)

var (
	// ErrNoKeyGenerated is returned when dnssec-keygen prints no key name.
	ErrNoKeyGenerated = errors.New("dnssec-keygen didn't generate anything")

	// ErrKeyFieldMissing is returned when the generated private key file has no Key field.
	ErrKeyFieldMissing = errors.New("key field not found in output from dnssec-keygen")
)

// omshell fails with "partial base64 value left over" when '+' or '/'
// touches the word "no", in either order and any case.
var badKeyPattern = regexp.MustCompile(`(?i)[+/]no|no[+/]`)

// KeyGenerator produces HMAC-MD5 shared secrets for OMAPI with dnssec-keygen.
type KeyGenerator struct {
	Command string

	runner shell.Runner
	logger *slog.Logger
}

// NewKeyGenerator returns a generator that runs dnssec-keygen through runner.
// Nil arguments select shell.ExecRunner and slog.Default().
func NewKeyGenerator(runner shell.Runner, logger *slog.Logger) *KeyGenerator {
	if runner == nil {
		runner = shell.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyGenerator{
		Command: "dnssec-keygen",
		runner:  runner,
		logger:  logger.With("component", "keygen"),
	}
}

// Generate returns a shared key omshell can parse. Keys omshell would choke
// on are discarded and regenerated. The scratch directory dnssec-keygen
// writes into is removed before Generate returns.
func (g *KeyGenerator) Generate(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp("", "rack-omapi-key.")
	if err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			g.logger.Warn("failed to remove key directory", "dir", dir, "error", err)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		key, keyFile, err := g.generateOnce(ctx, dir)
		if err != nil {
			return "", err
		}
		if !badKeyPattern.MatchString(key) {
			return key, nil
		}

		metrics.KeygenRetriesTotal.Inc()
		g.logger.Debug("discarding key omshell cannot parse", "file", filepath.Base(keyFile))
		if err := os.Remove(keyFile); err != nil {
			return "", fmt.Errorf("failed to discard rejected key: %w", err)
		}
	}
}

func (g *KeyGenerator) generateOnce(ctx context.Context, dir string) (key, keyFile string, err error) {
	metrics.KeygenAttemptsTotal.Inc()
	output, err := g.runner.Run(ctx, shell.Command{
		Path: g.Command,
		Args: []string{
			"-r", "/dev/urandom", "-a", "HMAC-MD5", "-b", "512",
			"-n", "HOST", "-K", dir, "-q", "omapi_key",
		},
		Env: keygenEnv(),
	})
	if err != nil {
		return "", "", err
	}

	keyID := strings.TrimSpace(string(output))
	if keyID == "" {
		return "", "", ErrNoKeyGenerated
	}

	keyFile = filepath.Join(dir, keyID+".private")
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrKeyFieldMissing, err)
	}
	fields, err := parseKeyValue(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrKeyFieldMissing, err)
	}
	key, ok := fields["Key"]
	if !ok {
		return "", "", ErrKeyFieldMissing
	}
	return key, keyFile, nil
}

// keygenEnv appends /usr/sbin to PATH, where distributions install dnssec-keygen.
func keygenEnv() []string {
	env := os.Environ()
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = kv + string(os.PathListSeparator) + "/usr/sbin"
			return env
		}
	}
	return append(env, "PATH=/usr/sbin")
}

// parseKeyValue reads "Field: value" lines. Blank lines are ignored.
func parseKeyValue(data []byte) (map[string]string, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		fields[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return fields, scanner.Err()
}
