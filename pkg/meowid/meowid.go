package meowid

import (
	"strconv"
	"sync"
	"time"
)

// MeowID Format:
// Timestamp (41-bits)
// Node ID (11-bits)
// Increment (11-bits)
//
// Post ids, pending mutation ids and gateway session ids are all MeowIDs.

type MeowID = int64

const MeowerEpoch int64 = 1577836800000 // 2020-01-01 12am GMT

const (
	TimestampBits = 41
	TimestampMask = (1 << TimestampBits) - 1

	NodeIdBits = 11
	NodeIdMask = (1 << NodeIdBits) - 1

	IncrementBits = 11
	IncrementMask = (1 << IncrementBits) - 1
)

var NodeId int

var idLock = sync.Mutex{}
var idTs int64 = 0
var idIncrement int64 = 0

func Init(nodeId string) error {
	if nodeId == "" {
		NodeId = 0
		return nil
	}
	var err error
	NodeId, err = strconv.Atoi(nodeId)
	return err
}

func GenId() MeowID {
	idLock.Lock()
	defer idLock.Unlock()

	// Get timestamp and increment, waiting for the next millisecond if this
	// one has run out of increments
	ts := time.Now().UnixMilli()
	if idTs != ts {
		idTs = ts
		idIncrement = 0
	} else if idIncrement >= IncrementMask {
		for ts <= idTs {
			ts = time.Now().UnixMilli()
		}
		idTs = ts
		idIncrement = 0
	} else {
		idIncrement++
	}

	return construct(ts, int64(NodeId), idIncrement)
}

// GenIdForTs gives the lowest possible id for a timestamp. It's only meant for
// range queries such as "posts before this time".
func GenIdForTs(ts int64) MeowID {
	return construct(ts, 0, 0)
}

func construct(ts int64, nodeId int64, increment int64) MeowID {
	id := (ts - MeowerEpoch) << (NodeIdBits + IncrementBits)
	id |= (nodeId & NodeIdMask) << IncrementBits
	id |= increment & IncrementMask
	return id
}

type Parts struct {
	Timestamp int64
	NodeId    int64
	Increment int64
}

func Extract(id MeowID) Parts {
	return Parts{
		Timestamp: ((id >> (NodeIdBits + IncrementBits)) & TimestampMask) + MeowerEpoch,
		NodeId:    (id >> IncrementBits) & NodeIdMask,
		Increment: id & IncrementMask,
	}
}

func String(id MeowID) string {
	return strconv.FormatInt(id, 10)
}

func Parse(s string) (MeowID, error) {
	return strconv.ParseInt(s, 10, 64)
}
