package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"golang.org/x/crypto/salsa20"
)

const (
	// PacketSize is the length of a GT7 "A" telemetry packet.
	PacketSize = 0x128

	packetMagic = 0x47375330
	ivMask      = 0xDEADBEAF

	flagOnTrack = 1 << 0
	flagPaused  = 1 << 1
	flagLoading = 1 << 2
)

var packetKey = func() [32]byte {
	var key [32]byte
	copy(key[:], "Simulator Interface Packet GT7 ver 0.0")
	return key
}()

// DecryptPacket reverses the Salsa20 stream cipher applied by the console
// and verifies the packet magic.
func DecryptPacket(data []byte) ([]byte, error) {
	if len(data) < PacketSize {
		return nil, fmt.Errorf("decrypt %d bytes: %w", len(data), ErrShortPacket)
	}

	iv1 := binary.LittleEndian.Uint32(data[0x40:0x44])
	iv2 := iv1 ^ ivMask
	nonce := make([]byte, 8)
	binary.LittleEndian.PutUint32(nonce[0:4], iv2)
	binary.LittleEndian.PutUint32(nonce[4:8], iv1)

	out := make([]byte, PacketSize)
	salsa20.XORKeyStream(out, data[:PacketSize], nonce, &packetKey)

	if binary.LittleEndian.Uint32(out[0:4]) != packetMagic {
		return nil, ErrBadMagic
	}
	return out, nil
}

// EncryptPacket applies the console's cipher to a plain packet. The IV
// stored at 0x40 is left in the clear, as on the wire.
func EncryptPacket(plain []byte) ([]byte, error) {
	if len(plain) < PacketSize {
		return nil, fmt.Errorf("encrypt %d bytes: %w", len(plain), ErrShortPacket)
	}

	iv1 := binary.LittleEndian.Uint32(plain[0x40:0x44])
	nonce := make([]byte, 8)
	binary.LittleEndian.PutUint32(nonce[0:4], iv1^ivMask)
	binary.LittleEndian.PutUint32(nonce[4:8], iv1)

	out := make([]byte, PacketSize)
	salsa20.XORKeyStream(out, plain[:PacketSize], nonce, &packetKey)
	copy(out[0x40:0x44], plain[0x40:0x44])
	return out, nil
}

// DecodePacket converts a decrypted packet into a Snapshot.
func DecodePacket(plain []byte, receivedAt time.Time) (Snapshot, error) {
	if len(plain) < PacketSize {
		return Snapshot{}, fmt.Errorf("decode %d bytes: %w", len(plain), ErrShortPacket)
	}
	if binary.LittleEndian.Uint32(plain[0:4]) != packetMagic {
		return Snapshot{}, ErrBadMagic
	}

	f32 := func(off int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(plain[off : off+4])))
	}
	i16 := func(off int) int {
		return int(int16(binary.LittleEndian.Uint16(plain[off : off+2])))
	}
	i32 := func(off int) int {
		return int(int32(binary.LittleEndian.Uint32(plain[off : off+4])))
	}
	flags := binary.LittleEndian.Uint16(plain[0x8E:0x90])

	return Snapshot{
		PacketID:     int32(i32(0x70)),
		ReceivedAt:   receivedAt,
		EngineRPM:    f32(0x3C),
		FuelLevel:    f32(0x44),
		FuelCapacity: f32(0x48),
		SpeedMPS:     f32(0x4C),
		OilPressure:  f32(0x54),
		WaterTemp:    f32(0x58),
		OilTemp:      f32(0x5C),
		TireTempFL:   f32(0x60),
		TireTempFR:   f32(0x64),
		TireTempRL:   f32(0x68),
		TireTempRR:   f32(0x6C),
		Lap:          i16(0x74),
		TotalLaps:    i16(0x76),
		BestLapMs:    i32(0x78),
		LastLapMs:    i32(0x7C),
		Position:     i16(0x84),
		TotalCars:    i16(0x86),
		OnTrack:      flags&flagOnTrack != 0,
		Paused:       flags&flagPaused != 0,
		Loading:      flags&flagLoading != 0,
	}, nil
}
