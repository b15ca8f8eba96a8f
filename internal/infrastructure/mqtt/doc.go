// Package mqtt connects the portal to an MQTT broker.
//
// The portal uses MQTT for three things:
//   - a retained online/offline status at portal/system/status, with a Last
//     Will so crashes are visible to other services
//   - one event per sync execution at portal/sync/{job}/result
//   - commands at portal/command/sync/{job} that trigger a sync job on demand
//
// The client wraps paho.mqtt.golang, reconnects automatically, restores
// subscriptions after a reconnect and recovers panics in message handlers.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSyncCommands(), 1, func(topic string, _ []byte) error {
//	    job, ok := mqtt.Topics{}.ParseSyncCommand(topic)
//	    ...
//	})
package mqtt
