package sessionstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/inkpress/services/user"
	"gorm.io/gorm"
)

// Session is the durable record of one signed-in device. DeviceID is unique
// across all users, so a device id belongs to exactly one account at a time.
type Session struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	UserID      string     `json:"userId" gorm:"size:36;not null;index"`
	User        *user.User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	DeviceID    string     `json:"deviceId" gorm:"size:100;not null;uniqueIndex"`
	JTI         string     `json:"-" gorm:"column:jti;size:60;not null"`
	IsLoggedOut bool       `json:"isLoggedOut" gorm:"not null;default:false"`
	IPAddress   string     `json:"ipAddress" gorm:"size:45"`
	Location    string     `json:"location" gorm:"size:255"`
	Device      string     `json:"device" gorm:"size:255"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Session) TableName() string {
	return "blog_user_sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	s.ID = id.String()
	return nil
}

// Metadata is the network and client information refreshed on login and refresh.
type Metadata struct {
	IPAddress string
	Location  string
	UserAgent string
}

// DescribeDevice turns a User-Agent header into a short label such as "Chrome 120.0.0.0 on Windows 10".
func DescribeDevice(userAgent string) string {
	if userAgent == "" {
		return "Unknown device"
	}

	ua := useragent.Parse(userAgent)

	browser := ua.Name
	if browser == "" {
		browser = "Unknown browser"
	} else if ua.Version != "" {
		browser += " " + ua.Version
	}

	os := ua.OS
	if os == "" {
		return browser
	}
	if ua.OSVersion != "" {
		os += " " + ua.OSVersion
	}

	return browser + " on " + os
}
