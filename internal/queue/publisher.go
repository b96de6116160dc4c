package queue

import (
    "context"
    "encoding/json"
    "errors"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/kututa/railway-booking/internal/model"
)

// Errors returned while the broker connection is being re-established.
// Events published in that window are dropped; the audit log is best effort.
var (
    ErrBrokerDialing = errors.New("rabbitmq: connection is being established")
    ErrBrokerBackoff = errors.New("rabbitmq: waiting before the next dial")
)

const (
    dialTimeout = 5 * time.Second
    dialBackoff = 15 * time.Second
)

// Publisher sends booking events to RabbitMQ.  The connection is opened
// lazily and reopened after the broker drops it.  Only one caller dials at
// a time and never while holding the lock, so a broker outage does not
// stall payment callbacks; after a failed dial publishing fails fast for
// dialBackoff.
type Publisher struct {
    url  string
    log  logrus.FieldLogger
    dial func(url string) (*amqp.Connection, *amqp.Channel, error)
    now  func() time.Time

    mu      sync.Mutex
    conn    *amqp.Connection
    ch      *amqp.Channel
    dialing bool
    retryAt time.Time
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
    return &Publisher{url: url, log: log, dial: dialBroker, now: time.Now}
}

// PublishBookingFinalized publishes a BookingFinalizedEvent for b to the
// booking.finalized queue.  Messages are marked as persistent.
func (p *Publisher) PublishBookingFinalized(ctx context.Context, b model.Booking) error {
    body, err := json.Marshal(NewBookingFinalizedEvent(b))
    if err != nil {
        p.log.WithError(err).Error("rabbitmq: marshal event failed")
        return err
    }

    ch, err := p.channel()
    if err != nil {
        p.log.WithError(err).WithField("booking_id", b.ID).Warn("rabbitmq: event dropped")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        MessageId:    b.ID + ":" + string(b.Status),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",               // default exchange
        BookingQueueName, // routing key = queue name
        false,            // mandatory
        false,            // immediate
        pub,
    ); err != nil {
        p.log.WithError(err).WithField("booking_id", b.ID).Warn("rabbitmq: publish failed")
        p.drop(ch)
        return err
    }
    return nil
}

// channel returns the open channel or dials a new one.  Concurrent callers
// do not wait for a dial in progress.
func (p *Publisher) channel() (*amqp.Channel, error) {
    p.mu.Lock()
    if p.ch != nil && !p.ch.IsClosed() {
        ch := p.ch
        p.mu.Unlock()
        return ch, nil
    }
    if p.dialing {
        p.mu.Unlock()
        return nil, ErrBrokerDialing
    }
    if p.now().Before(p.retryAt) {
        p.mu.Unlock()
        return nil, ErrBrokerBackoff
    }
    p.closeLocked()
    p.dialing = true
    p.mu.Unlock()

    conn, ch, err := p.dial(p.url)

    p.mu.Lock()
    defer p.mu.Unlock()
    p.dialing = false
    if err != nil {
        p.retryAt = p.now().Add(dialBackoff)
        return nil, err
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

// dialBroker opens a connection and channel and declares the durable
// booking.finalized queue.
func dialBroker(url string) (*amqp.Connection, *amqp.Channel, error) {
    conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, err
    }
    return conn, ch, nil
}

// drop closes the connection if ch is still the current channel.
func (p *Publisher) drop(ch *amqp.Channel) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == ch {
        p.closeLocked()
    }
}

func (p *Publisher) closeLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closeLocked()
    return nil
}
