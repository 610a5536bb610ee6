package acudp

import (
	"fmt"
)

const (
	textFieldSize = 100

	// HandshakeSize is the size of the handshake reply: four text fields and two uint32s.
	HandshakeSize = 4*textFieldSize + 2*4

	updateLeadingPadding = 8
	updateSpeedPadding   = 24
	updateTrailPadding   = 236

	// UpdateSize is the size of a single car telemetry update.
	UpdateSize = updateLeadingPadding + 2*4 + updateSpeedPadding + 4*4 + 5*4 + 4 + updateTrailPadding + 3*4
)

// SessionInfo is the game's reply to a handshake.
type SessionInfo struct {
	CarName     string `json:"CarName" yaml:"car_name"`
	DriverName  string `json:"DriverName" yaml:"driver_name"`
	Identifier  uint32 `json:"Identifier" yaml:"identifier"`
	Version     uint32 `json:"Version" yaml:"version"`
	TrackName   string `json:"TrackName" yaml:"track_name"`
	TrackConfig string `json:"TrackConfig" yaml:"track_config"`
}

func (s SessionInfo) String() string {
	return fmt.Sprintf("%s, %s, %s, %s", s.CarName, s.DriverName, s.TrackName, s.TrackConfig)
}

func DecodeHandshake(b []byte) (SessionInfo, error) {
	if err := checkRecordSize("handshake", b, HandshakeSize); err != nil {
		return SessionInfo{}, err
	}

	p := NewPacket(b)

	var s SessionInfo

	s.CarName = p.ReadUTF16String(textFieldSize)
	s.DriverName = p.ReadUTF16String(textFieldSize)
	s.Identifier = p.ReadUint32()
	s.Version = p.ReadUint32()
	s.TrackName = p.ReadUTF16String(textFieldSize)
	s.TrackConfig = p.ReadUTF16String(textFieldSize)

	return s, nil
}

func EncodeHandshake(s SessionInfo) []byte {
	p := NewPacket(make([]byte, 0, HandshakeSize))

	p.WriteUTF16String(s.CarName, textFieldSize)
	p.WriteUTF16String(s.DriverName, textFieldSize)
	p.Write(s.Identifier)
	p.Write(s.Version)
	p.WriteUTF16String(s.TrackName, textFieldSize)
	p.WriteUTF16String(s.TrackConfig, textFieldSize)

	return p.Bytes()
}

// Update is one car telemetry sample. Lap times are in milliseconds.
type Update struct {
	SpeedKmh float32
	SpeedMph float32

	LapTime  uint32
	LastLap  uint32
	BestLap  uint32
	LapCount uint32

	Gas       float32
	Brake     float32
	Clutch    float32
	EngineRPM float32
	Steer     float32

	Gear uint32

	X float32
	Y float32
	Z float32
}

func (u Update) Position() Vector3F {
	return Vector3F{X: u.X, Y: u.Y, Z: u.Z}
}

func (u Update) String() string {
	return fmt.Sprintf("%v, %v, %v, %v, %v, %v, %v", u.SpeedKmh, u.Gas, u.Brake, u.EngineRPM, u.X, u.Y, u.Z)
}

func DecodeUpdate(b []byte) (Update, error) {
	if err := checkRecordSize("update", b, UpdateSize); err != nil {
		return Update{}, err
	}

	p := NewPacket(b)

	var u Update

	p.Skip(updateLeadingPadding)
	u.SpeedKmh = p.ReadFloat32()
	u.SpeedMph = p.ReadFloat32()

	p.Skip(updateSpeedPadding)
	u.LapTime = p.ReadUint32()
	u.LastLap = p.ReadUint32()
	u.BestLap = p.ReadUint32()
	u.LapCount = p.ReadUint32()

	u.Gas = p.ReadFloat32()
	u.Brake = p.ReadFloat32()
	u.Clutch = p.ReadFloat32()
	u.EngineRPM = p.ReadFloat32()
	u.Steer = p.ReadFloat32()
	u.Gear = p.ReadUint32()

	p.Skip(updateTrailPadding)
	u.X = p.ReadFloat32()
	u.Y = p.ReadFloat32()
	u.Z = p.ReadFloat32()

	return u, nil
}

func EncodeUpdate(u Update) []byte {
	p := NewPacket(make([]byte, 0, UpdateSize))

	p.WritePadding(updateLeadingPadding)
	p.Write(u.SpeedKmh)
	p.Write(u.SpeedMph)

	p.WritePadding(updateSpeedPadding)
	p.Write(u.LapTime)
	p.Write(u.LastLap)
	p.Write(u.BestLap)
	p.Write(u.LapCount)

	p.Write(u.Gas)
	p.Write(u.Brake)
	p.Write(u.Clutch)
	p.Write(u.EngineRPM)
	p.Write(u.Steer)
	p.Write(u.Gear)

	p.WritePadding(updateTrailPadding)
	p.Write(u.X)
	p.Write(u.Y)
	p.Write(u.Z)

	return p.Bytes()
}
