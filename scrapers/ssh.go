package scrapers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"dev.hon.one/netcrawl/common"
)

type outputReaderStatus int

const (
	outputReaderOK outputReaderStatus = iota
	outputReaderDone
	outputReaderError
)

type outputReaderResult struct {
	Data   string
	Status outputReaderStatus
	Err    error
}

// SSHDialer - Creates SSH transports using the loaded credentials.
type SSHDialer struct {
	Credentials    map[string]common.Credential
	DefaultPort    uint
	ConnectTimeout time.Duration
	// IdleTimeout ends command output when the prompt never shows up.
	IdleTimeout time.Duration
}

// Dial - Create an unopened SSH transport. Matches Dialer.
func (dialer *SSHDialer) Dial(identity common.DeviceIdentity, prompt *regexp.Regexp) (Transport, error) {
	credential, found := dialer.Credentials[identity.CredentialID]
	if !found {
		log.WithFields(log.Fields{
			"device": identity.Name,
		}).Warnf("Failed to find credential: %v", identity.CredentialID)
		return nil, fmt.Errorf("credential %q not found", identity.CredentialID)
	}
	config, err := buildSSHConfig(credential, dialer.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	idleTimeout := dialer.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 3 * time.Second
	}
	return &SSHTransport{
		device:         identity,
		target:         identity.Target(dialer.DefaultPort),
		config:         config,
		connectTimeout: dialer.ConnectTimeout,
		idleTimeout:    idleTimeout,
		prompt:         prompt,
	}, nil
}

func buildSSHConfig(credential common.Credential, timeout time.Duration) (*ssh.ClientConfig, error) {
	authMethods := make([]ssh.AuthMethod, 0)
	if credential.Password != "" {
		password := credential.Password
		authMethods = append(authMethods, ssh.Password(password))
		authMethods = append(authMethods, ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}))
	}
	if credential.PrivateKeyPath != "" {
		privateKey, err := os.ReadFile(credential.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH private key %v: %w", credential.PrivateKeyPath, err)
		}
		var signer ssh.Signer
		if credential.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(credential.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(privateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH private key %v: %w", credential.PrivateKeyPath, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	return &ssh.ClientConfig{
		User:            credential.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

// SSHTransport - Interactive shell over SSH, reading output until the prompt shows up.
type SSHTransport struct {
	device         common.DeviceIdentity
	target         string
	config         *ssh.ClientConfig
	connectTimeout time.Duration
	idleTimeout    time.Duration
	prompt         *regexp.Regexp

	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	output  <-chan outputReaderResult
}

// Open - Dial, authenticate, start a shell and wait for the first prompt.
func (transport *SSHTransport) Open(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: transport.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", transport.target)
	if err != nil {
		return fmt.Errorf("failed to dial %v: %w", transport.target, err)
	}

	// Bound the handshake by the session deadline
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, transport.target, transport.config)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	conn.SetDeadline(time.Time{})
	transport.client = ssh.NewClient(sshConn, chans, reqs)

	// Make sure a hanging device can't outlive the session
	client := transport.client
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	session, err := transport.client.NewSession()
	if !checkDeviceFailure(transport.device, "Failed to start session", err) {
		return err
	}
	transport.session = session
	transport.stdin, err = session.StdinPipe()
	if !checkDeviceFailure(transport.device, "Failed to get STDIN pipe", err) {
		return err
	}
	stdoutReader, err := session.StdoutPipe()
	if !checkDeviceFailure(transport.device, "Failed to get STDOUT pipe", err) {
		return err
	}
	stderrReader, err := session.StderrPipe()
	if !checkDeviceFailure(transport.device, "Failed to get STDERR pipe", err) {
		return err
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	err = session.RequestPty("vt100", 0, 511, modes)
	if !checkDeviceFailure(transport.device, "Failed to request PTY", err) {
		return err
	}
	err = session.Shell()
	if !checkDeviceFailure(transport.device, "Failed to start shell", err) {
		return err
	}

	transport.output = followSSHStream(transport.device, "STDOUT", stdoutReader)
	drainSSHStreamLines(transport.device, "STDERR", stderrReader)

	if _, err := transport.readUntilPrompt(ctx); err != nil {
		return fmt.Errorf("no prompt: %w", err)
	}
	return nil
}

// Run - Send a command and collect its output.
func (transport *SSHTransport) Run(ctx context.Context, command string, settle time.Duration) (string, error) {
	if transport.stdin == nil {
		return "", errors.New("shell not open")
	}
	transport.discardPending()
	if _, err := io.WriteString(transport.stdin, command+"\n"); err != nil {
		return "", err
	}

	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	raw, err := transport.readUntilPrompt(ctx)
	if err != nil {
		return "", err
	}
	return cleanCommandOutput(raw, command, transport.prompt), nil
}

// Close - Leave the shell and close the connection.
func (transport *SSHTransport) Close() error {
	if transport.stdin != nil {
		io.WriteString(transport.stdin, "exit\n")
		transport.stdin = nil
	}
	if transport.session != nil {
		transport.session.Close()
		transport.session = nil
	}
	if transport.client != nil {
		client := transport.client
		transport.client = nil
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}

func (transport *SSHTransport) discardPending() {
	for {
		select {
		case result := <-transport.output:
			if result.Status != outputReaderOK {
				return
			}
		default:
			return
		}
	}
}

// Collects output until the last line is a prompt, output goes quiet or the stream ends.
func (transport *SSHTransport) readUntilPrompt(ctx context.Context) (string, error) {
	var buffer strings.Builder
	for {
		select {
		case <-ctx.Done():
			return buffer.String(), ctx.Err()
		case result, ok := <-transport.output:
			if !ok || result.Status == outputReaderDone {
				return buffer.String(), io.ErrUnexpectedEOF
			}
			if result.Status == outputReaderError {
				return buffer.String(), result.Err
			}
			buffer.WriteString(result.Data)
			if transport.prompt != nil && transport.prompt.MatchString(lastLine(buffer.String())) {
				return buffer.String(), nil
			}
		case <-time.After(transport.idleTimeout):
			log.WithFields(log.Fields{
				"device": transport.device.Name,
			}).Trace("Output went quiet without a prompt")
			return buffer.String(), nil
		}
	}
}

func lastLine(text string) string {
	return text[strings.LastIndex(text, "\n")+1:]
}

// Strips the echoed command and the trailing prompt.
func cleanCommandOutput(raw string, command string, prompt *regexp.Regexp) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r", ""), "\n")
	if len(lines) > 0 && strings.Contains(lines[0], command) {
		lines = lines[1:]
	}
	if len(lines) > 0 && prompt != nil && prompt.MatchString(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func checkDeviceFailure(device common.DeviceIdentity, message string, err error) bool {
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"device": device.Name,
		}).Tracef("Device error: %v", message)
		return false
	}
	return true
}

// Reads the stream in the background and returns a channel for its chunks.
// Prompts don't end with a newline, so output is passed on as it arrives.
func followSSHStream(device common.DeviceIdentity, streamName string, reader io.Reader) <-chan outputReaderResult {
	outChannel := make(chan outputReaderResult, 256)

	go func() {
		defer close(outChannel)
		buffer := make([]byte, 4096)
		for {
			numBytes, err := reader.Read(buffer)
			if numBytes > 0 {
				outChannel <- outputReaderResult{Data: strings.ReplaceAll(string(buffer[:numBytes]), "\r", "")}
			}
			if err == io.EOF {
				outChannel <- outputReaderResult{Status: outputReaderDone}
				return
			} else if err != nil {
				checkDeviceFailure(device, fmt.Sprintf("Failed to read from %v stream", streamName), err)
				outChannel <- outputReaderResult{Status: outputReaderError, Err: err}
				return
			}
		}
	}()

	return outChannel
}

// Reads the stream in the background and just prints its lines to the log.
func drainSSHStreamLines(device common.DeviceIdentity, streamName string, reader io.Reader) {
	go func() {
		buffer := make([]byte, 4096)
		for {
			numBytes, err := reader.Read(buffer)
			for _, line := range strings.Split(strings.TrimSpace(string(buffer[:numBytes])), "\n") {
				if line != "" {
					log.WithFields(log.Fields{
						"device": device.Name,
					}).Tracef("Received line on %v: %v", streamName, line)
				}
			}
			if err != nil {
				return
			}
		}
	}()
}
