package scraper

const statusPage = `<!DOCTYPE html>
<html>
<body>
  <p class="timestamp">Last updated 2025-8-17 9:01:00 PM</p>
  <div class="garage">
    <h2 class="garage__name">South Garage </h2>
    <a class="garage__address" href="https://maps.example.com/?q=south">377 S. 7th St., San Jose, CA 95112</a>
    <span class="garage__fullness">45 %</span>
  </div>
  <div class="garage">
    <h2 class="garage__name">West Garage</h2>
    <a class="garage__address" href="https://maps.example.com/?q=west">350 S. 4th St., San Jose, CA 95112</a>
    <span class="garage__fullness">Full</span>
  </div>
  <div class="garage">
    <h2 class="garage__name">North Garage</h2>
    <a class="garage__address">65 S. 10th St., San Jose, CA 95112</a>
    <span class="garage__fullness">n/a</span>
  </div>
  <div class="garage">
    <h2 class="garage__name">Broken Garage</h2>
    <span class="garage__fullness">10 %</span>
  </div>
</body>
</html>`
