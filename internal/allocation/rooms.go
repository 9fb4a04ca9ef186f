package allocation

import "math/rand/v2"

// RoomRequest 需要分配房间的场次
type RoomRequest struct {
	SessionID    string
	PersonalRoom string // 创建者的专属房间，可为空
}

// RoomAssignment 场次与房间的对应
type RoomAssignment struct {
	SessionID string
	Room      string
}

// AssignRooms 先满足专属房间，其余场次随机顺序从公共池中取房间，取完为止。
// 池耗尽后剩下的场次不分配房间，也不报错。
func (e *Engine) AssignRooms(requests []RoomRequest, pool []string) []RoomAssignment {
	rng := e.newRand()

	shuffled := make([]RoomRequest, len(requests))
	copy(shuffled, requests)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	rooms := make([]string, len(pool))
	copy(rooms, pool)

	out := make([]RoomAssignment, 0, len(shuffled))
	var rest []RoomRequest
	for _, r := range shuffled {
		if r.PersonalRoom == "" {
			rest = append(rest, r)
			continue
		}
		out = append(out, RoomAssignment{SessionID: r.SessionID, Room: r.PersonalRoom})
		rooms = removeRoom(rooms, r.PersonalRoom)
	}

	for _, r := range rest {
		if len(rooms) == 0 {
			break
		}
		last := len(rooms) - 1
		out = append(out, RoomAssignment{SessionID: r.SessionID, Room: rooms[last]})
		rooms = rooms[:last]
	}
	return out
}

func removeRoom(rooms []string, room string) []string {
	for i, r := range rooms {
		if r == room {
			return append(rooms[:i], rooms[i+1:]...)
		}
	}
	return rooms
}

// shuffleStrings 原地打乱
func shuffleStrings(rng *rand.Rand, s []string) {
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
