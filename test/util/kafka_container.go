package util

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	dockercfg "github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spf13/viper"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

const defaultKafkaImage = "apache/kafka:3.8.0"

// KafkaContainer wraps a single-broker Kafka testcontainer and admin helpers.
type KafkaContainer struct {
	container tc.Container
	hostPort  int
}

// StartKafka launches a single-broker Kafka (KRaft) that advertises
// localhost:hostPort, so clients on the host reach it without extra DNS.
func StartKafka(ctx context.Context, image string, hostPort int) (*KafkaContainer, error) {
	if image == "" {
		image = defaultKafkaImage
	}
	clusterID := strings.TrimSpace(viper.GetString("kafka.cluster_id"))
	if clusterID == "" {
		clusterID = "4L6g3nShT-eMCtK--X86sw"
	}

	clientPort := nat.Port(fmt.Sprintf("%d/tcp", hostPort))
	req := tc.ContainerRequest{
		Image:        image,
		Hostname:     "kafka-test-container",
		ExposedPorts: []string{string(clientPort)},
		Env: map[string]string{
			"KAFKA_NODE_ID":                                  "1",
			"KAFKA_PROCESS_ROLES":                            "broker,controller",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":           "CONTROLLER:PLAINTEXT,PLAINTEXT:PLAINTEXT,PLAINTEXT_HOST:PLAINTEXT",
			"KAFKA_LISTENERS":                                fmt.Sprintf("CONTROLLER://:29093,PLAINTEXT_HOST://:%d,PLAINTEXT://:19092", hostPort),
			"KAFKA_ADVERTISED_LISTENERS":                     fmt.Sprintf("PLAINTEXT_HOST://localhost:%d,PLAINTEXT://localhost:19092", hostPort),
			"KAFKA_CONTROLLER_LISTENER_NAMES":                "CONTROLLER",
			"KAFKA_CONTROLLER_QUORUM_VOTERS":                 "1@localhost:29093",
			"KAFKA_INTER_BROKER_LISTENER_NAME":               "PLAINTEXT",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
			"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
			"KAFKA_LOG_DIRS":                                 "/tmp/kraft-combined-logs",
			"CLUSTER_ID":                                     clusterID,
		},
		WaitingFor: wait.ForListeningPort(clientPort).WithStartupTimeout(90 * time.Second),
	}
	req.HostConfigModifier = func(hc *dockercfg.HostConfig) {
		if hc.PortBindings == nil {
			hc.PortBindings = nat.PortMap{}
		}
		hc.PortBindings[clientPort] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(hostPort)}}
	}

	ctr, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return nil, fmt.Errorf("start kafka dep: %w", err)
	}
	return &KafkaContainer{container: ctr, hostPort: hostPort}, nil
}

// Brokers returns the seed broker list for host-side clients.
func (k *KafkaContainer) Brokers() []string {
	return []string{fmt.Sprintf("localhost:%d", k.hostPort)}
}

// EnsureTopic creates a topic if it does not already exist.
// partitions=-1 and replication=-1 let the broker defaults apply on 2.4+.
func (k *KafkaContainer) EnsureTopic(ctx context.Context, name string, partitions int32, replication int16) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers()...))
	if err != nil {
		return fmt.Errorf("init kafka client: %w", err)
	}
	defer cl.Close()

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 15000
	t := kmsg.NewCreateTopicsRequestTopic()
	t.Topic = name
	if partitions == 0 {
		partitions = -1
	}
	if replication == 0 {
		replication = -1
	}
	t.NumPartitions = partitions
	t.ReplicationFactor = replication
	req.Topics = append(req.Topics, t)

	resp, err := req.RequestWith(ctx, cl)
	if err != nil {
		return fmt.Errorf("create topics request failed: %w", err)
	}
	for _, tr := range resp.Topics {
		if tr.Topic != name {
			continue
		}
		if err := kerr.ErrorForCode(tr.ErrorCode); err != nil {
			if errors.Is(err, kerr.TopicAlreadyExists) {
				return nil
			}
			msg := ""
			if tr.ErrorMessage != nil {
				msg = *tr.ErrorMessage
			}
			return fmt.Errorf("create topic error: %v %s", err, msg)
		}
		return nil
	}
	return fmt.Errorf("topic %q missing in create topics response", name)
}

// ConsumeRecords polls topic from the beginning until want records arrive or
// timeout elapses, and returns what it collected.
func (k *KafkaContainer) ConsumeRecords(ctx context.Context, topic string, want int, timeout time.Duration) ([]*kgo.Record, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(k.Brokers()...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out []*kgo.Record
	for len(out) < want {
		fetches := cl.PollFetches(ctx)
		if ctx.Err() != nil {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) { out = append(out, r) })
	}
	if len(out) < want {
		return out, fmt.Errorf("got %d of %d kafka records in time", len(out), want)
	}
	return out, nil
}

// Terminate stops and removes the underlying dep.
func (k *KafkaContainer) Terminate(ctx context.Context) error {
	if k == nil || k.container == nil {
		return nil
	}
	return k.container.Terminate(ctx)
}

// InitKafkaContainer starts Kafka on kafka.port, points kafka.host at it and
// creates kafka.topic.
func InitKafkaContainer(ctx context.Context) (*KafkaContainer, error) {
	port := viper.GetInt("kafka.port")
	if port <= 0 {
		port = 29092
	}
	kc, err := StartKafka(ctx, viper.GetString("kafka.image"), port)
	if err != nil {
		return nil, err
	}
	viper.Set("kafka.host", "localhost")
	viper.Set("kafka.port", port)

	if err := kc.EnsureTopic(ctx, viper.GetString("kafka.topic"), 1, 1); err != nil {
		_ = kc.Terminate(ctx)
		return nil, fmt.Errorf("ensure topic: %w", err)
	}
	return kc, nil
}
