// Package mqtt implements the core protocol state machine for an MQTT
// 3.1.1 endpoint, shared by client-side and server-side callers: framing
// packets on and off the wire, driving the QoS 0/1/2
// publish and delivery flows, retrying unacknowledged deliveries, and
// answering keep-alive pings. It does not dial connections, parse URIs, or
// manage TLS — callers hand it something that looks like a net.Conn and it
// takes over from there.
package mqtt
