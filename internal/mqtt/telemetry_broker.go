package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vitalwatch-data/internal/repository"
	"vitalwatch-data/internal/service"

	"go.uber.org/zap"
)

// TelemetryBroker 设备遥测 MQTT 消息处理模块
// 消息体与 HTTP ingest 相同：单条对象或对象数组。
type TelemetryBroker struct {
	ingest *service.IngestService
	logger *zap.Logger
}

func NewTelemetryBroker(ingest *service.IngestService, logger *zap.Logger) *TelemetryBroker {
	return &TelemetryBroker{ingest: ingest, logger: logger}
}

// HandleMessage 处理遥测消息。未知设备和缺失字段记日志后跳过，
// 不中断后续消息。
func (b *TelemetryBroker) HandleMessage(topic string, payload []byte) error {
	payloads, err := decodeTelemetry(payload)
	if err != nil {
		return fmt.Errorf("failed to decode telemetry message: %w", err)
	}

	for _, p := range payloads {
		if err := b.ingest.Ingest(context.Background(), p); err != nil {
			if errors.Is(err, service.ErrMissingDeviceCode) || errors.Is(err, repository.ErrDeviceNotFound) {
				b.logger.Warn("dropping telemetry message",
					zap.String("topic", topic),
					zap.String("kode_perangkat", p.KodePerangkat),
					zap.Error(err),
				)
				continue
			}
			return err
		}
	}
	return nil
}

func decodeTelemetry(payload []byte) ([]service.TelemetryPayload, error) {
	var single service.TelemetryPayload
	if err := json.Unmarshal(payload, &single); err == nil {
		return []service.TelemetryPayload{single}, nil
	}

	var batch []service.TelemetryPayload
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}
