package model

import "time"

// Feed identifiers for the recommendation tables. The TODAY feed is
// refreshed every trading day; LONG_TERM entries stay visible until
// cancelled by the publishing desk.
const (
    FeedToday    = "TODAY"
    FeedLongTerm = "LONG_TERM"
)

// Recommendation is one published stock pick. Rows are pushed into
// the shared database by the external desktop application; this
// service only reads and gates them by membership level.
//
// Fields:
//  ID          – primary key identifier.
//  Feed        – TODAY or LONG_TERM.
//  StockCode   – exchange ticker code.
//  StockName   – display name of the stock.
//  Title       – headline written by the publishing desk.
//  Body        – commentary text.
//  MinLevel    – minimum membership level allowed to see the row.
//  IsActive    – cleared when the pick is cancelled.
//  PublishedAt – when the pick was pushed.
type Recommendation struct {
    ID          uint64    // recommendations.id
    Feed        string    // recommendations.feed
    StockCode   string    // recommendations.stock_code
    StockName   string    // recommendations.stock_name
    Title       string    // recommendations.title
    Body        string    // recommendations.body
    MinLevel    int       // recommendations.min_level
    IsActive    bool      // recommendations.is_active
    PublishedAt time.Time // recommendations.published_at
}

// Page maps a content path to the membership level required to view
// it. Paths not present in the table are open by default.
//
// Fields:
//  ID            – primary key identifier.
//  Path          – URL path of the gated page.
//  RequiredLevel – minimum membership level; 0 means login not required.
//  IsActive      – disabled pages behave as unregistered.
type Page struct {
    ID            uint64 // pages.id
    Path          string // pages.path
    RequiredLevel int    // pages.required_level
    IsActive      bool   // pages.is_active
}
