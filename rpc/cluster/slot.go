package cluster

import (
	"bytes"
)

// SlotCount is the number of hash slots of a cluster
const SlotCount = 16384

// crc16Table is the lookup table of CRC-16/XMODEM (polynomial 0x1021, initial value 0)
var crc16Table = func() (table [256]uint16) {
	for i := range table {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()

// CRC16 computes the CRC-16/XMODEM checksum of data
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// HashTag returns the part of the key that is hashed: the content between the first '{'
// and the next '}' when it is not empty, otherwise the whole key.
func HashTag(key []byte) []byte {
	start := bytes.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := bytes.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

// SlotByKey returns the hash slot of a key
func SlotByKey(key []byte) int {
	return int(CRC16(HashTag(key)) % SlotCount)
}
