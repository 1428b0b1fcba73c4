// Package mqtt provides MQTT client connectivity for the cuckoo core.
//
// MQTT is the push channel between the core and the playback devices: the
// poller publishes play notifications to cuckoo/device/{id}/play, devices
// report results on cuckoo/device/{id}/ack, and the core announces its own
// liveness on cuckoo/system/status with a Last Will for crash detection.
//
// Notifications carry the schedule and sound references only; a notified
// device fetches the actual audio payload over HTTP. MQTT is optional: with
// mqtt.enabled=false devices poll the due endpoint instead.
package mqtt
