package koji

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/models"
	"github.com/kolo/xmlrpc"
	"github.com/sirupsen/logrus"
)

// Client talks XML-RPC to the hub. It is not safe for concurrent use.
type Client struct {
	server    string
	cfg       config.KojiConfig
	transport http.RoundTripper
	log       logrus.FieldLogger

	sessionID  int
	sessionKey string
	callnum    int
}

// NewClient creates a client for the hub described by cfg.
func NewClient(cfg config.KojiConfig, log logrus.FieldLogger) (*Client, error) {
	if _, err := url.Parse(cfg.Server); err != nil {
		return nil, fmt.Errorf("koji server url: %w", err)
	}
	log.WithField("server", cfg.Server).Debug("initiating a koji session")
	return &Client{
		server:    cfg.Server,
		cfg:       cfg,
		transport: http.DefaultTransport,
		log:       log,
	}, nil
}

// LoggedIn reports whether the session holds hub credentials.
func (c *Client) LoggedIn() bool {
	return c.sessionKey != ""
}

// Login performs an SSL certificate login when a username is configured.
// Credentials are read from the configured paths; they are never written.
func (c *Client) Login() error {
	if c.cfg.Username == "" {
		return nil
	}

	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	c.transport = &http.Transport{TLSClientConfig: tlsConfig, Proxy: http.ProxyFromEnvironment}

	var reply struct {
		SessionID  int    `xmlrpc:"session-id"`
		SessionKey string `xmlrpc:"session-key"`
	}
	loginURL := strings.TrimRight(c.server, "/") + "/ssllogin"
	if err := c.callURL(loginURL, "sslLogin", nil, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrLogin, err)
	}
	if reply.SessionKey == "" {
		return fmt.Errorf("%w: could not auth as %s", ErrLogin, c.cfg.Username)
	}
	c.sessionID, c.sessionKey, c.callnum = reply.SessionID, reply.SessionKey, 0
	c.log.WithFields(logrus.Fields{"server": c.server, "user": c.cfg.Username}).Debug("logged into koji")
	return nil
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.cfg.Cert, c.cfg.Cert)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}
	if c.cfg.ServerCA != "" {
		pem, err := os.ReadFile(c.cfg.ServerCA)
		if err != nil {
			return nil, fmt.Errorf("read server ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", c.cfg.ServerCA)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Logout ends an authenticated session. It is a no-op for anonymous sessions.
func (c *Client) Logout() error {
	if !c.LoggedIn() {
		return nil
	}
	err := c.call("logout", nil, nil)
	c.sessionID, c.sessionKey = 0, ""
	return err
}

// SubmitBuild queues a build and returns its task id.
func (c *Client) SubmitBuild(source, target string, opts map[string]interface{}, priority int) (int, error) {
	if opts == nil {
		opts = map[string]interface{}{}
	}
	var taskID int
	if err := c.call("build", []interface{}{source, target, opts, priority}, &taskID); err != nil {
		return 0, fmt.Errorf("submit build %s: %w", source, err)
	}
	return taskID, nil
}

type taskInfoReply struct {
	ID      int           `xmlrpc:"id"`
	Parent  int           `xmlrpc:"parent"`
	State   int           `xmlrpc:"state"`
	HostID  int           `xmlrpc:"host_id"`
	Method  string        `xmlrpc:"method"`
	Arch    string        `xmlrpc:"arch"`
	Request []interface{} `xmlrpc:"request"`
}

func (r taskInfoReply) toInfo() *TaskInfo {
	return &TaskInfo{
		ID:       r.ID,
		ParentID: r.Parent,
		State:    models.TaskState(r.State),
		HostID:   r.HostID,
		Method:   r.Method,
		Arch:     r.Arch,
		Request:  r.Request,
	}
}

// GetTaskInfo fetches the current state of a task.
func (c *Client) GetTaskInfo(id int, request bool) (*TaskInfo, bool, error) {
	var reply taskInfoReply
	if err := c.call("getTaskInfo", []interface{}{id, request}, &reply); err != nil {
		return nil, false, fmt.Errorf("get task info %d: %w", id, err)
	}
	if reply.ID == 0 {
		return nil, false, nil
	}
	return reply.toInfo(), true, nil
}

// GetTaskChildren lists the direct children of a task.
func (c *Client) GetTaskChildren(id int) ([]TaskInfo, error) {
	var reply []taskInfoReply
	if err := c.call("getTaskChildren", []interface{}{id}, &reply); err != nil {
		return nil, fmt.Errorf("get task children %d: %w", id, err)
	}
	out := make([]TaskInfo, 0, len(reply))
	for _, r := range reply {
		out = append(out, *r.toInfo())
	}
	return out, nil
}

// GetTaskResult returns the fault a failed task raised.
func (c *Client) GetTaskResult(id int) error {
	var reply interface{}
	return c.call("getTaskResult", []interface{}{id}, &reply)
}

// GetHost looks up a build host.
func (c *Client) GetHost(id int) (*Host, error) {
	var reply struct {
		ID   int    `xmlrpc:"id"`
		Name string `xmlrpc:"name"`
	}
	if err := c.call("getHost", []interface{}{id}, &reply); err != nil {
		return nil, fmt.Errorf("get host %d: %w", id, err)
	}
	if reply.ID == 0 && reply.Name == "" {
		return nil, nil
	}
	return &Host{ID: reply.ID, Name: reply.Name}, nil
}

// GetBuildTarget looks up a build target by name.
func (c *Client) GetBuildTarget(name string) (*BuildTarget, error) {
	var reply struct {
		Name         string `xmlrpc:"name"`
		BuildTagName string `xmlrpc:"build_tag_name"`
		DestTagName  string `xmlrpc:"dest_tag_name"`
	}
	if err := c.call("getBuildTarget", []interface{}{name}, &reply); err != nil {
		return nil, fmt.Errorf("get build target %s: %w", name, err)
	}
	if reply.Name == "" {
		return nil, nil
	}
	return &BuildTarget{Name: reply.Name, BuildTagName: reply.BuildTagName, DestTagName: reply.DestTagName}, nil
}

// GetTag looks up a tag by name.
func (c *Client) GetTag(name string) (*Tag, error) {
	var reply struct {
		ID     int    `xmlrpc:"id"`
		Name   string `xmlrpc:"name"`
		Locked bool   `xmlrpc:"locked"`
	}
	if err := c.call("getTag", []interface{}{name}, &reply); err != nil {
		return nil, fmt.Errorf("get tag %s: %w", name, err)
	}
	if reply.Name == "" {
		return nil, nil
	}
	return &Tag{ID: reply.ID, Name: reply.Name, Locked: reply.Locked}, nil
}

// CheckTagPackage reports whether pkg is on the tag's package list.
func (c *Client) CheckTagPackage(tag, pkg string) (bool, error) {
	var ok bool
	if err := c.call("checkTagPackage", []interface{}{tag, pkg}, &ok); err != nil {
		return false, fmt.Errorf("check tag package %s/%s: %w", tag, pkg, err)
	}
	return ok, nil
}

// PackageListAdd adds pkg to the tag's package list.
func (c *Client) PackageListAdd(tag, pkg, owner string) error {
	if err := c.call("packageListAdd", []interface{}{tag, pkg, owner}, nil); err != nil {
		return fmt.Errorf("add package %s to %s: %w", pkg, tag, err)
	}
	return nil
}

func (c *Client) endpoint() string {
	if !c.LoggedIn() {
		return c.server
	}
	c.callnum++
	q := url.Values{}
	q.Set("session-id", strconv.Itoa(c.sessionID))
	q.Set("session-key", c.sessionKey)
	q.Set("callnum", strconv.Itoa(c.callnum))
	sep := "?"
	if strings.Contains(c.server, "?") {
		sep = "&"
	}
	return c.server + sep + q.Encode()
}

func (c *Client) call(method string, args []interface{}, reply interface{}) error {
	return c.callURL(c.endpoint(), method, args, reply)
}

func (c *Client) callURL(endpoint, method string, args []interface{}, reply interface{}) error {
	rpc, err := xmlrpc.NewClient(endpoint, c.transport)
	if err != nil {
		return err
	}
	defer rpc.Close()

	var params interface{}
	if len(args) > 0 {
		params = args
	}
	if reply == nil {
		var discard interface{}
		reply = &discard
	}
	c.log.WithField("method", method).Debug("koji call")
	return asFault(rpc.Call(method, params, reply))
}

var faultPattern = regexp.MustCompile(`^(?:error: )?Fault\((-?\d+)\): (?s)(.*)$`)

// asFault converts XML-RPC faults into *Fault so callers can tell hub errors
// from transport errors.
func asFault(err error) error {
	if err == nil {
		return nil
	}
	var fe xmlrpc.FaultError
	if errors.As(err, &fe) {
		return &Fault{Code: fe.Code, Message: strings.TrimSpace(fe.String)}
	}
	if m := faultPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &Fault{Code: code, Message: strings.TrimSpace(m[2])}
	}
	return err
}

var _ Session = (*Client)(nil)
