package util

import (
	"container/list"
	"os"
	"strconv"
	"sync"

	"gorm.io/gorm"
)

// LRU cache for userID -> username
type userEntry struct {
	userID   uint
	username string
}

type userLRU struct {
	mu       sync.Mutex
	ll       *list.List
	cache    map[uint]*list.Element
	capacity int
}

var userCache *userLRU

// InitUsernameCache initializes the LRU cache with given capacity.
// If capacity <= 0, a default of 1000 is used.
func InitUsernameCache(capacity int) {
	if capacity <= 0 {
		capacity = 1000
	}
	userCache = &userLRU{
		ll:       list.New(),
		cache:    make(map[uint]*list.Element),
		capacity: capacity,
	}
}

// UsernameCacheGet returns username and true if present in cache.
func UsernameCacheGet(userID uint) (string, bool) {
	if userCache == nil {
		return "", false
	}
	userCache.mu.Lock()
	defer userCache.mu.Unlock()
	if ele, ok := userCache.cache[userID]; ok {
		userCache.ll.MoveToFront(ele)
		if e, ok := ele.Value.(userEntry); ok {
			return e.username, true
		}
	}
	return "", false
}

// UsernameCacheSet sets the username for a userID in the cache.
func UsernameCacheSet(userID uint, username string) {
	if userCache == nil {
		return
	}
	userCache.mu.Lock()
	defer userCache.mu.Unlock()
	if ele, ok := userCache.cache[userID]; ok {
		userCache.ll.MoveToFront(ele)
		ele.Value = userEntry{userID: userID, username: username}
		return
	}
	ele := userCache.ll.PushFront(userEntry{userID: userID, username: username})
	userCache.cache[userID] = ele
	if userCache.ll.Len() > userCache.capacity {
		// evict least recently used
		tail := userCache.ll.Back()
		if tail != nil {
			if e, ok := tail.Value.(userEntry); ok {
				delete(userCache.cache, e.userID)
			}
			userCache.ll.Remove(tail)
		}
	}
}

// GetUsername returns the username for userID using cache, falling back to DB.
// If found in DB, caches the result.
func GetUsername(db *gorm.DB, userID uint) string {
	if userID == 0 {
		return ""
	}
	if username, ok := UsernameCacheGet(userID); ok {
		return username
	}
	if db == nil {
		return ""
	}
	var u struct{ Username string }
	if err := db.Table("users").Select("username").Where("id = ?", userID).Take(&u).Error; err == nil {
		if u.Username != "" {
			UsernameCacheSet(userID, u.Username)
		}
		return u.Username
	}
	return ""
}

// InitUsernameCacheFromEnv initializes the cache using the env var USERNAME_CACHE_SIZE
func InitUsernameCacheFromEnv() {
	sizeStr := os.Getenv("USERNAME_CACHE_SIZE")
	if sizeStr == "" {
		InitUsernameCache(0)
		return
	}
	if n, err := strconv.Atoi(sizeStr); err == nil {
		InitUsernameCache(n)
		return
	}
	InitUsernameCache(0)
}
