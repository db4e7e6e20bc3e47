package server

import "github.com/palemoky/doudizhu-server/internal/protocol"

// ConnectionCount 当前连接数
func (s *Server) ConnectionCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// BroadcastToLobby 广播给不在对局中的连接
func (s *Server) BroadcastToLobby(msg *protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if !s.play.InGame(c) {
			_ = c.SendMessage(msg)
		}
	}
}
