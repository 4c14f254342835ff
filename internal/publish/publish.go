// Package publish sends telemetry samples to an MQTT broker and takes
// throttle commands from it.
//
// Topics, under the base topic of the broker URI:
//
//	<base>/esc/<n>    telemetry sample of ESC n, JSON
//	<base>/throttle   throttle level 0..100 (command)
//	<base>/arm        "1"/"true" arms, "0"/"false" disarms (command)
//	<base>/presence   "1" while the throttle signal is valid, retained
package publish

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/BryanSouza91/castlelink/internal/source"
)

// DefaultTopic is the base topic when the broker URI has no path.
const DefaultTopic = "castlelink"

// ErrCommand is returned for an unusable command payload.
var ErrCommand = errors.New("publish: bad command")

// Controller is the part of castlelink.Link the commands drive.
type Controller interface {
	SetThrottle(level int) error
	ThrottleArm()
	ThrottleDisarm()
}

// Broker is a parsed broker URI.
type Broker struct {
	Address  string // scheme://host:port[/mqtt]
	Topic    string
	User     string
	Password string
	TLS      bool
}

// ParseBroker parses mqtt://[user[:pass]@]host[:port]/topic. The schemes
// mqtts and ssl select TLS; ws and wss connect over websockets.
func ParseBroker(uri string) (Broker, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Broker{}, err
	}
	var b Broker
	host := u.Hostname()
	if host == "" {
		return b, fmt.Errorf("publish: no broker host in %q", uri)
	}
	port, _ := strconv.Atoi(u.Port())

	scheme := "tcp"
	mpath := ""
	switch u.Scheme {
	case "mqtt", "tcp", "":
	case "mqtts", "ssl":
		scheme = "ssl"
		b.TLS = true
	case "ws":
		scheme = "ws"
		mpath = "/mqtt"
	case "wss":
		scheme = "wss"
		mpath = "/mqtt"
		b.TLS = true
	default:
		return b, fmt.Errorf("publish: unsupported scheme %q", u.Scheme)
	}
	if port == 0 {
		port = 1883
		if b.TLS {
			port = 8883
		}
	}
	b.Address = fmt.Sprintf("%s://%s:%d%s", scheme, host, port, mpath)
	b.Topic = strings.Trim(u.Path, "/")
	if b.Topic == "" {
		b.Topic = DefaultTopic
	}
	b.User = u.User.Username()
	b.Password, _ = u.User.Password()
	return b, nil
}

// Client publishes samples and relays commands.
type Client struct {
	client mqtt.Client
	topic  string
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Println("mqtt: connected")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
}

// Dial connects to the broker of uri, retrying in the background.
func Dial(uri string) (*Client, error) {
	b, err := ParseBroker(uri)
	if err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.Address)
	opts.SetClientID("castlelink-" + uuid.NewString())
	opts.SetUsername(b.User)
	opts.SetPassword(b.Password)
	if b.TLS {
		opts.SetTLSConfig(&tls.Config{ClientAuth: tls.NoClientCert})
	}
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(b.Topic+"/presence", "0", 1, true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, token.Error()
	}
	return &Client{client: client, topic: b.Topic}, nil
}

// ESCTopic returns the telemetry topic of esc.
func ESCTopic(base string, esc int) string {
	return base + "/esc/" + strconv.Itoa(esc)
}

// Publish sends s to its ESC topic.
func (c *Client) Publish(s source.Sample) error {
	msg, err := json.Marshal(s)
	if err != nil {
		return err
	}
	token := c.client.Publish(ESCTopic(c.topic, s.ESC), 0, false, msg)
	token.Wait()
	return token.Error()
}

// PublishPresence reports the throttle signal state. It may be called from
// handler context: it does not wait for the broker.
func (c *Client) PublishPresence(valid bool) {
	v := "0"
	if valid {
		v = "1"
	}
	c.client.Publish(c.topic+"/presence", 1, true, v)
}

// Subscribe feeds throttle and arm commands to ctl.
func (c *Client) Subscribe(ctl Controller) error {
	filters := map[string]byte{
		c.topic + "/throttle": 1,
		c.topic + "/arm":      1,
	}
	token := c.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if err := Command(ctl, c.topic, msg.Topic(), msg.Payload()); err != nil {
			log.Printf("mqtt: %s: %v", msg.Topic(), err)
		}
	})
	token.Wait()
	return token.Error()
}

// Command applies one command message to ctl.
func Command(ctl Controller, base, topic string, payload []byte) error {
	switch strings.TrimPrefix(topic, base+"/") {
	case "throttle":
		level, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil || level < 0 || level > 100 {
			return fmt.Errorf("%w: throttle %q", ErrCommand, payload)
		}
		return ctl.SetThrottle(level)
	case "arm":
		on, err := strconv.ParseBool(strings.TrimSpace(string(payload)))
		if err != nil {
			return fmt.Errorf("%w: arm %q", ErrCommand, payload)
		}
		if on {
			ctl.ThrottleArm()
		} else {
			ctl.ThrottleDisarm()
		}
		return nil
	}
	return fmt.Errorf("%w: topic %s", ErrCommand, topic)
}

// Close disconnects, clearing the retained presence.
func (c *Client) Close() {
	c.PublishPresence(false)
	c.client.Disconnect(250)
}
