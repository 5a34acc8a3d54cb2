package model

import (
	"net"
	"strconv"
)

type ConnectionKind string

const (
	ConnectionNone   ConnectionKind = "none"
	ConnectionTCP    ConnectionKind = "tcp"
	ConnectionSerial ConnectionKind = "serial"
)

// Connection describes how to reach the device. Built once from config.
type Connection struct {
	Kind ConnectionKind
	Host string
	Port int
	Path string
	Baud int
}

func TCPConnection(host string, port int) Connection {
	return Connection{Kind: ConnectionTCP, Host: host, Port: port}
}

func SerialConnection(path string, baud int) Connection {
	return Connection{Kind: ConnectionSerial, Path: path, Baud: baud}
}

// Address is the dial target for TCP connections.
func (c Connection) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Connection) String() string {
	switch c.Kind {
	case ConnectionTCP:
		return "tcp://" + c.Address()
	case ConnectionSerial:
		return "serial://" + c.Path
	default:
		return string(ConnectionNone)
	}
}
